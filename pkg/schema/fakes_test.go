package schema

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type rowKey struct {
	shop, ownerType, key string
}

type storedRow struct {
	cmd     models.UpsertCommand
	audited bool
}

// memoryStore behaves like the relational store: each chunk is applied
// atomically and rows are keyed by (shop, owner type, key).
type memoryStore struct {
	mu         sync.Mutex
	rows       map[rowKey]storedRow
	chunkSizes []int
	failOn     map[int]error
	calls      int
	onChunk    func(call int)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rows:   map[rowKey]storedRow{},
		failOn: map[int]error{},
	}
}

func (m *memoryStore) UpsertChunk(_ context.Context, cmds []models.UpsertCommand) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.calls
	m.calls++
	m.chunkSizes = append(m.chunkSizes, len(cmds))
	if m.onChunk != nil {
		m.onChunk(call)
	}
	if err, ok := m.failOn[call]; ok {
		return err
	}

	staged := make(map[rowKey]storedRow, len(cmds))
	for _, cmd := range cmds {
		k := rowKey{cmd.Shop, cmd.OwnerType, cmd.Key}
		_, exists := m.rows[k]
		if _, inChunk := staged[k]; inChunk {
			exists = true
		}
		staged[k] = storedRow{cmd: cmd, audited: exists}
	}
	for k, row := range staged {
		m.rows[k] = row
	}
	return nil
}

func (m *memoryStore) get(shop, ownerType, key string) (storedRow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[rowKey{shop, ownerType, key}]
	return row, ok
}

func makeCommands(n int) []models.UpsertCommand {
	cmds := make([]models.UpsertCommand, n)
	for i := range cmds {
		cmds[i] = models.UpsertCommand{
			Shop:      "demo.myshopify.com",
			OwnerType: "PRODUCT",
			Key:       fmt.Sprintf("custom.field_%03d", i),
			Name:      fmt.Sprintf("Field %d", i),
		}
	}
	return cmds
}

func makeRaws(n int) []models.RawRemoteDefinition {
	raws := make([]models.RawRemoteDefinition, n)
	for i := range raws {
		raws[i] = models.RawRemoteDefinition{
			ID:        fmt.Sprintf("gid://shopify/MetafieldDefinition/%d", i),
			Namespace: "custom",
			Key:       fmt.Sprintf("field_%03d", i),
			Name:      fmt.Sprintf("Field %d", i),
			Type:      &models.RemoteTypeRef{Name: "single_line_text_field"},
		}
	}
	return raws
}
