package session

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/edumarket/internal/client/models"
	"github.com/dmitrijs2005/edumarket/internal/client/token"
)

// CurrentVersion is the schema version written by this client.
const CurrentVersion = 1

// Migration upgrades a persisted state from one version to the next.
type Migration func(state json.RawMessage) (json.RawMessage, error)

// migrations is keyed by the source version.
var migrations = map[int]Migration{
	0: migrateV0,
}

type envelope struct {
	Version int             `json:"version"`
	State   json.RawMessage `json:"state"`
}

type persisted struct {
	Claims    *token.Claims   `json:"claims"`
	Profile   *models.Profile `json:"profile"`
	CartCount int             `json:"cart_count"`
}

func encodeSnapshot(s State) ([]byte, error) {
	state, err := json.Marshal(persisted{
		Claims:    s.Claims,
		Profile:   s.Profile,
		CartCount: s.CartCount,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: CurrentVersion, State: state})
}

func decodeSnapshot(b []byte, table map[int]Migration) (persisted, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return persisted{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if env.Version > CurrentVersion {
		return persisted{}, fmt.Errorf("snapshot version %d is newer than %d", env.Version, CurrentVersion)
	}

	state := env.State
	for v := env.Version; v < CurrentVersion; v++ {
		m, ok := table[v]
		if !ok {
			return persisted{}, fmt.Errorf("no migration from version %d", v)
		}
		next, err := m(state)
		if err != nil {
			return persisted{}, fmt.Errorf("migrate snapshot from version %d: %w", v, err)
		}
		state = next
	}

	var p persisted
	if len(state) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(state, &p); err != nil {
		return persisted{}, fmt.Errorf("decode snapshot state: %w", err)
	}
	if p.CartCount < 0 {
		p.CartCount = 0
	}
	return p, nil
}

// migrateV0 converts the unversioned layout, which kept the decoded token
// under "allUserData" next to transient flags.
func migrateV0(state json.RawMessage) (json.RawMessage, error) {
	var old struct {
		AllUserData *token.Claims   `json:"allUserData"`
		Profile     *models.Profile `json:"profile"`
		CartCount   int             `json:"cart_count"`
	}
	if len(state) > 0 {
		if err := json.Unmarshal(state, &old); err != nil {
			return nil, err
		}
	}
	return json.Marshal(persisted{
		Claims:    old.AllUserData,
		Profile:   old.Profile,
		CartCount: max(old.CartCount, 0),
	})
}
