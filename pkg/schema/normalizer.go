package schema

import (
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// KeySeparator joins namespace and key. Either part may itself contain it,
// so a composite key cannot always be split back unambiguously.
const KeySeparator = "."

func CompositeKey(namespace, key string) string {
	return namespace + KeySeparator + key
}

// SplitCompositeKey splits at the first separator. Only meant for display.
func SplitCompositeKey(composite string) (namespace, key string, ok bool) {
	return strings.Cut(composite, KeySeparator)
}

// Normalize maps one remote definition to an upsert command.
func Normalize(shop, ownerType string, raw models.RawRemoteDefinition) models.UpsertCommand {
	cmd := models.UpsertCommand{
		Shop:        shop,
		OwnerType:   ownerType,
		Key:         CompositeKey(raw.Namespace, raw.Key),
		Name:        raw.Name,
		Description: raw.Description,
	}
	if raw.Type != nil {
		name := raw.Type.Name
		cmd.Type = &name
	}
	return cmd
}

// NormalizeAll normalizes raws preserving order.
func NormalizeAll(shop, ownerType string, raws []models.RawRemoteDefinition) []models.UpsertCommand {
	cmds := make([]models.UpsertCommand, len(raws))
	for i, raw := range raws {
		cmds[i] = Normalize(shop, ownerType, raw)
	}
	return cmds
}
