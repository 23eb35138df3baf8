package notes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mdnotes/internal/markdown"
)

// NotesService is the layer the CLI talks to. It owns note mutations and the
// caller-facing sync operations. Every successful mutation schedules a
// background sync cycle.
type NotesService struct {
	store   RecordStore
	history SyncHistory
	session *SyncSession
	remote  RemoteChannel
	trigger *Trigger
	logger  Logger
	clock   Clock
	idgen   IDGenerator
}

func NewNotesService(store RecordStore, history SyncHistory, session *SyncSession, remote RemoteChannel, trigger *Trigger, logger Logger, clock Clock, idgen IDGenerator) *NotesService {
	return &NotesService{
		store:   store,
		history: history,
		session: session,
		remote:  remote,
		trigger: trigger,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
	}
}

// CreateNote stores a new note with the given markdown content and the
// default color and window state.
func (s *NotesService) CreateNote(ctx context.Context, content string) (*Note, error) {
	now := s.clock.Now()
	ws := DefaultWindowState
	note := Note{
		ID:          s.idgen.New(),
		Title:       markdown.Title(content, DefaultTitle),
		Content:     content,
		CreatedAt:   now,
		UpdatedAt:   now,
		Color:       DefaultColor,
		WindowState: &ws,
	}

	if err := s.store.Put(ctx, note); err != nil {
		return nil, fmt.Errorf("creating note: %w", err)
	}

	s.logger.Info("note created", "id", note.ID)
	s.trigger.Request(ReasonMutation)
	return &note, nil
}

// ImportFile creates a note from a markdown file. The title is the file name
// without its extension, cut like any other title.
func (s *NotesService) ImportFile(ctx context.Context, path string) (*Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	now := s.clock.Now()
	ws := DefaultWindowState
	base := filepath.Base(path)
	title := markdown.ClampTitle(strings.TrimSuffix(base, filepath.Ext(base)))
	if title == "" {
		title = DefaultTitle
	}
	note := Note{
		ID:          s.idgen.New(),
		Title:       title,
		Content:     string(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		Color:       DefaultColor,
		WindowState: &ws,
	}

	if err := s.store.Put(ctx, note); err != nil {
		return nil, fmt.Errorf("importing note: %w", err)
	}

	s.logger.Info("note imported", "id", note.ID, "path", path)
	s.trigger.Request(ReasonMutation)
	return &note, nil
}

// GetNotes returns live notes, most recently updated first.
func (s *NotesService) GetNotes(ctx context.Context) ([]Note, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return LiveNotes(all), nil
}

// GetNote returns a live note. Tombstoned and unknown ids return ErrNoteNotFound.
func (s *NotesService) GetNote(ctx context.Context, id string) (*Note, error) {
	note, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting note: %w", err)
	}
	if note == nil || note.Deleted {
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	return note, nil
}

// SaveNote writes a note supplied by the caller, stamping UpdatedAt. An
// existing record keeps its CreatedAt and is revived if it was tombstoned.
// Its color and window state are kept when note leaves them empty. New ids
// get CreatedAt and defaults filled in.
func (s *NotesService) SaveNote(ctx context.Context, note Note) (*Note, error) {
	if note.ID == "" {
		return nil, fmt.Errorf("saving note: missing id")
	}

	now := s.clock.Now()
	if note.Title == "" {
		note.Title = markdown.Title(note.Content, DefaultTitle)
	} else {
		note.Title = markdown.ClampTitle(note.Title)
	}
	note.Deleted = false
	note.UpdatedAt = now

	err := s.store.Update(ctx, func(all []Note) ([]Note, error) {
		if i := indexOf(all, note.ID); i >= 0 {
			note.CreatedAt = all[i].CreatedAt
			if note.Color == "" {
				note.Color = all[i].Color
			}
			if note.WindowState == nil {
				note.WindowState = all[i].WindowState
			}
			all[i] = note
			return all, nil
		}
		if note.CreatedAt.IsZero() {
			note.CreatedAt = now
		}
		if note.Color == "" {
			note.Color = DefaultColor
		}
		if note.WindowState == nil {
			ws := DefaultWindowState
			note.WindowState = &ws
		}
		return append(all, note), nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving note: %w", err)
	}

	s.logger.Debug("note saved", "id", note.ID)
	s.trigger.Request(ReasonMutation)
	return &note, nil
}

// EditNote replaces a live note's content and re-derives its title.
func (s *NotesService) EditNote(ctx context.Context, id, content string) (*Note, error) {
	return s.mutate(ctx, id, "editing note", func(n *Note) {
		n.Content = content
		n.Title = markdown.Title(content, DefaultTitle)
	})
}

// SetColor changes a live note's color.
func (s *NotesService) SetColor(ctx context.Context, id, color string) (*Note, error) {
	return s.mutate(ctx, id, "setting note color", func(n *Note) {
		n.Color = color
	})
}

// UpdateWindowState records a live note's window position. It counts as a
// mutation like any other, so it bumps UpdatedAt.
func (s *NotesService) UpdateWindowState(ctx context.Context, id string, ws WindowState) (*Note, error) {
	return s.mutate(ctx, id, "updating window state", func(n *Note) {
		n.WindowState = &ws
	})
}

// DeleteNote tombstones a note. The record is kept so the deletion reaches
// other devices.
func (s *NotesService) DeleteNote(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, "deleting note", func(n *Note) {
		n.Deleted = true
	})
	if err != nil {
		return err
	}
	s.logger.Info("note deleted", "id", id)
	return nil
}

// DeleteNotes tombstones every live note in ids in one transaction and
// returns how many were tombstoned. Unknown ids are ignored.
func (s *NotesService) DeleteNotes(ctx context.Context, ids []string) (int, error) {
	now := s.clock.Now()
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	count := 0
	err := s.store.Update(ctx, func(all []Note) ([]Note, error) {
		count = 0
		for i := range all {
			if wanted[all[i].ID] && all[i].Live() {
				all[i].Tombstone(now)
				count++
			}
		}
		return all, nil
	})
	if err != nil {
		return 0, fmt.Errorf("deleting notes: %w", err)
	}

	if count > 0 {
		s.logger.Info("notes deleted", "count", count)
		s.trigger.Request(ReasonMutation)
	}
	return count, nil
}

// mutate applies fn to a live note inside a store transaction, stamps
// UpdatedAt and schedules a sync.
func (s *NotesService) mutate(ctx context.Context, id, action string, fn func(*Note)) (*Note, error) {
	now := s.clock.Now()
	var updated Note

	err := s.store.Update(ctx, func(all []Note) ([]Note, error) {
		i := indexOf(all, id)
		if i < 0 || all[i].Deleted {
			return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
		}
		fn(&all[i])
		all[i].UpdatedAt = now
		updated = all[i]
		return all, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	s.trigger.Request(ReasonMutation)
	return &updated, nil
}
