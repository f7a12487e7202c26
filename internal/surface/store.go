package surface

import "github.com/jpalmerr/watchboard/internal/store"

// Store mirrors Handle state into a [store.Store] for the HTTP dashboard.
type Store struct {
	Store store.Store
}

func (s Store) HandleCreated(snap Snapshot)  { s.Store.Update(State(snap)) }
func (s Store) HandleUpdated(snap Snapshot)  { s.Store.Update(State(snap)) }
func (s Store) HandleDisposed(snap Snapshot) { s.Store.Remove(snap.ID) }

// State converts a snapshot to its storage representation.
func State(snap Snapshot) store.HandleState {
	state := store.HandleState{
		ID:        snap.ID,
		Identity:  snap.Identity,
		Member:    snap.Member,
		Label:     snap.Label,
		Kind:      snap.Kind,
		Static:    snap.Static,
		Target:    snap.Target,
		Group:     snap.Group,
		Order:     snap.Order,
		Text:      snap.Text,
		Enabled:   snap.Enabled,
		Visible:   snap.Visible,
		UpdatedAt: snap.UpdatedAt,
	}
	if snap.Error != "" {
		msg := snap.Error
		state.Error = &msg
	}
	return state
}
