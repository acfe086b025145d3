package keys

import "fmt"

// Common key slots referenced by the common_key_index field of a Ticket.
const (
	CommonKeyIndexRetail = 0
	CommonKeyIndexKorean = 1
	CommonKeyIndexVWii   = 2
)

// Names the common keys are stored under in the key table.
const (
	KeyNameCommon    = "common"
	KeyNameCommonDev = "common_dev"
	KeyNameKorean    = "korean"
	KeyNameVWii      = "vwii"
)

// CommonKey selects the AES common key for a Ticket's common_key_index. Index 0
// resolves to the development common key when isDev is set. Indices outside the
// known range fall back to the common key, matching what real tickets expect.
func CommonKey(index uint8, isDev bool) ([]byte, error) {
	var name string
	switch index {
	case CommonKeyIndexKorean:
		name = KeyNameKorean
	case CommonKeyIndexVWii:
		name = KeyNameVWii
	default:
		if isDev {
			name = KeyNameCommonDev
		} else {
			name = KeyNameCommon
		}
	}

	key := Get(name)
	if key == nil {
		return nil, fmt.Errorf("common key %q not loaded", name)
	}
	if len(key) != 16 {
		return nil, fmt.Errorf("common key %q must be 16 bytes, got %d", name, len(key))
	}
	return key, nil
}
