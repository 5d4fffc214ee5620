package portal_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/onenotify/onenotify/internal/portal"
)

func TestIsTimeout(t *testing.T) {
	wrapped := fmt.Errorf("goto detail: %w", portal.ErrTimeout)
	if !portal.IsTimeout(wrapped) {
		t.Error("wrapped timeout not recognized")
	}
	if portal.IsTimeout(errors.New("connection refused")) {
		t.Error("unrelated error classified as timeout")
	}
	if portal.IsTimeout(nil) {
		t.Error("nil classified as timeout")
	}
}

func TestMatchesDocumentStoreError(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{"ged banner", "Erro: GED indisponível no momento", true},
		{"repository banner", "REPOSITORIO DE DOCUMENTOS INDISPONIVEL", true},
		{"temporary banner", "Documento temporariamente indisponível", true},
		{"unrelated banner", "Sessão expirada, efetue novo login", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := portal.MatchesDocumentStoreError(tt.text); got != tt.expected {
				t.Errorf("MatchesDocumentStoreError(%q) = %v, want %v", tt.text, got, tt.expected)
			}
		})
	}
}
