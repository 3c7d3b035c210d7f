package repository

import (
	"encoding/json"
	"fmt"

	"github.com/dukerupert/freyja/internal/domain"
)

func marshalAddress(a domain.Address) []byte {
	b, _ := json.Marshal(a)
	return b
}

func unmarshalAddress(raw []byte, dst *domain.Address) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("repository: unmarshal address: %w", err)
	}
	return nil
}
