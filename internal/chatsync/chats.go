package chatsync

import (
	"context"
	"slices"

	"github.com/eldtechnologies/aidesk/internal/metrics"
	"github.com/eldtechnologies/aidesk/internal/models"
)

// RefreshChats fetches the chat list and merges it into memory. The fetch
// decides which chats exist and their order; a chat already held keeps its
// in-memory record so a racing fetch cannot undo a local mutation. A refresh
// that started before the newest applied one is discarded. It reports whether
// the result was applied.
func (c *Core) RefreshChats(ctx context.Context) bool {
	c.mu.Lock()
	c.refreshStarted++
	gen := c.refreshStarted
	c.mu.Unlock()

	fetched, ok := c.api.ListChats(ctx)
	if !ok {
		// The client already notified; keep what we have.
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen < c.refreshApplied {
		metrics.StaleResultsDiscarded.WithLabelValues("refresh").Inc()
		c.logger.Debug().Uint64("generation", gen).Uint64("applied", c.refreshApplied).Msg("discarding stale chat list")
		return false
	}
	c.refreshApplied = gen

	held := make(map[int]models.Chat, len(c.chats))
	for _, ch := range c.chats {
		held[ch.ID] = ch
	}
	merged := make([]models.Chat, 0, len(fetched))
	seen := make(map[int]bool, len(fetched))
	for _, f := range fetched {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		if local, ok := held[f.ID]; ok {
			merged = append(merged, local)
			continue
		}
		merged = append(merged, f.Clone())
	}
	c.chats = merged
	c.recountLocked()

	c.logger.Debug().Int("chats", len(merged)).Int("unread", c.unread).Msg("chat list refreshed")
	return true
}

// SelectChat makes the chat with the given id current, or deselects when id
// is nil. Only one selection runs at a time; a concurrent call returns
// ErrSelectionInProgress without touching state. Messages are loaded before
// the chat becomes selected. A waiting chat is marked as read. Any failure
// leaves nothing selected.
func (c *Core) SelectChat(ctx context.Context, id *int) error {
	if !c.selecting.CompareAndSwap(false, true) {
		return ErrSelectionInProgress
	}
	defer c.selecting.Store(false)

	if id == nil {
		c.mu.Lock()
		c.clearSelectionLocked()
		c.selectGen++
		c.mu.Unlock()
		return nil
	}
	chatID := *id

	chat, ok := c.Chat(chatID)
	if !ok {
		c.RefreshChats(ctx)
		chat, ok = c.Chat(chatID)
	}
	if !ok {
		c.logger.Warn().Int("chat_id", chatID).Msg("selected chat not found")
		c.mu.Lock()
		c.clearSelectionLocked()
		c.mu.Unlock()
		return ErrChatNotFound
	}

	c.mu.Lock()
	c.selectGen++
	gen := c.selectGen
	c.pendingID = chatID
	c.mu.Unlock()

	msgs, _ := c.api.ListMessages(ctx, chatID)

	c.mu.Lock()
	c.pendingID = 0
	if gen != c.selectGen || c.indexLocked(chatID) < 0 {
		// Deleted while the messages were loading.
		metrics.StaleResultsDiscarded.WithLabelValues("select").Inc()
		c.selected = nil
		c.messages = []models.Message{}
		c.mu.Unlock()
		return ErrSelectionSuperseded
	}
	current := c.chats[c.indexLocked(chatID)].Clone()
	c.selected = &current
	c.messages = append([]models.Message{}, msgs...)
	c.mu.Unlock()

	if chat.Waiting {
		if err := c.MarkChatAsRead(ctx, chatID); err != nil {
			c.mu.Lock()
			if c.isSelectedLocked(chatID) {
				c.clearSelectionLocked()
			}
			c.mu.Unlock()
			return err
		}
	}

	c.logger.Debug().Int("chat_id", chatID).Int("messages", len(msgs)).Msg("chat selected")
	return nil
}

// MarkChatAsRead clears a chat's waiting flag locally and on the server. The
// local flag is restored if the server call fails.
func (c *Core) MarkChatAsRead(ctx context.Context, id int) error {
	c.mu.Lock()
	prev := false
	c.mutateLocked(id, func(ch *models.Chat) {
		prev = ch.Waiting
		ch.Waiting = false
	})
	c.recountLocked()
	c.mu.Unlock()

	if err := c.api.MarkAsRead(ctx, id); err != nil {
		c.mu.Lock()
		c.mutateLocked(id, func(ch *models.Chat) { ch.Waiting = prev })
		c.recountLocked()
		c.mu.Unlock()
		return err
	}
	return nil
}

// ToggleAI sets a chat's AI flag optimistically, then applies the flag the
// server reports. The previous flag is restored on failure.
func (c *Core) ToggleAI(ctx context.Context, id int, enabled bool) (models.Chat, error) {
	c.mu.Lock()
	prev := false
	c.mutateLocked(id, func(ch *models.Chat) {
		prev = ch.AI
		ch.AI = enabled
	})
	c.mu.Unlock()

	updated, err := c.api.SetAI(ctx, id, enabled)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.mutateLocked(id, func(ch *models.Chat) { ch.AI = prev })
		return models.Chat{}, err
	}
	if updated.ID == id {
		c.mutateLocked(id, func(ch *models.Chat) { ch.AI = updated.AI })
	}
	if i := c.indexLocked(id); i >= 0 {
		return c.chats[i].Clone(), nil
	}
	return updated, nil
}

// AddTag adds tag to a chat. The local tag set is updated at once and
// replaced by the server's set on success, or restored on failure.
func (c *Core) AddTag(ctx context.Context, id int, tag string) ([]string, error) {
	return c.editTags(ctx, id, tag, true)
}

// RemoveTag removes tag from a chat, with the same optimism as AddTag.
func (c *Core) RemoveTag(ctx context.Context, id int, tag string) ([]string, error) {
	return c.editTags(ctx, id, tag, false)
}

func (c *Core) editTags(ctx context.Context, id int, tag string, add bool) ([]string, error) {
	var prev []string
	c.mu.Lock()
	c.mutateLocked(id, func(ch *models.Chat) {
		prev = append([]string{}, ch.Tags...)
		if add {
			if !slices.Contains(ch.Tags, tag) {
				ch.Tags = append(append([]string{}, ch.Tags...), tag)
			}
			return
		}
		ch.Tags = slices.DeleteFunc(append([]string{}, ch.Tags...), func(t string) bool { return t == tag })
	})
	c.mu.Unlock()

	var (
		res models.TagsResult
		err error
	)
	if add {
		res, err = c.api.AddTag(ctx, id, tag)
	} else {
		res, err = c.api.RemoveTag(ctx, id, tag)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if prev != nil {
			c.mutateLocked(id, func(ch *models.Chat) { ch.Tags = append([]string{}, prev...) })
		}
		return nil, err
	}
	c.mutateLocked(id, func(ch *models.Chat) { ch.Tags = append([]string{}, res.Tags...) })
	return append([]string{}, res.Tags...), nil
}

// DeleteChat deletes a chat on the server, then drops it locally and
// deselects it if it was selected.
func (c *Core) DeleteChat(ctx context.Context, id int) error {
	if err := c.api.DeleteChat(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	c.removeLocked(id)
	c.mu.Unlock()

	c.FetchStats(ctx)
	return nil
}

func (c *Core) removeLocked(id int) {
	c.chats = slices.DeleteFunc(c.chats, func(ch models.Chat) bool { return ch.ID == id })
	if c.isSelectedLocked(id) {
		c.clearSelectionLocked()
	}
	// A selection of this chat still loading its messages is stale.
	if c.pendingID == id {
		c.selectGen++
	}
	c.recountLocked()
}

// SyncVK resyncs a VK chat's history. When the chat is still selected
// afterwards its messages are reloaded.
func (c *Core) SyncVK(ctx context.Context, id int) (models.VKSyncResult, error) {
	res, err := c.api.SyncVK(ctx, id)
	if err != nil || !res.Success {
		return res, err
	}

	c.mu.Lock()
	if !c.isSelectedLocked(id) {
		c.mu.Unlock()
		return res, nil
	}
	gen := c.selectGen
	c.mu.Unlock()

	msgs, ok := c.api.ListMessages(ctx, id)
	if !ok {
		return res, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.selectGen || !c.isSelectedLocked(id) {
		metrics.StaleResultsDiscarded.WithLabelValues("sync_vk").Inc()
		return res, nil
	}
	c.messages = append([]models.Message{}, msgs...)
	return res, nil
}
