package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTemplateRepository_ListFiltersByType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	seed := `[
  {"id": 1, "name": "Velvet", "type": ["Product Photoshoot"], "prompt": "on velvet", "imageUrl": "/uploads/a.jpg"},
  {"id": 2, "name": "Beach", "type": ["Model Photoshoot", "Product Photoshoot"], "prompt": "beach", "imageUrl": "/uploads/b.jpg"},
  {"id": 3, "name": "Studio", "type": ["Model Photoshoot"], "prompt": "studio", "imageUrl": "/uploads/c.jpg"}
]`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	repo := NewFileTemplateRepository(path)

	all, err := repo.ListTemplates(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	product, err := repo.ListTemplates(context.Background(), "Product Photoshoot")
	require.NoError(t, err)
	require.Len(t, product, 2)
	assert.Equal(t, int64(1), product[0].ID)
	assert.Equal(t, int64(2), product[1].ID)

	none, err := repo.ListTemplates(context.Background(), "Jewellery")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFileTemplateRepository_CreatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	repo := NewFileTemplateRepository(path)

	created, err := repo.CreateTemplate(context.Background(), Template{
		ID: 42, Name: "Marble", Type: []string{"Product Photoshoot"}, Prompt: "marble", ImageURL: "/uploads/m.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "Marble", created.Name)

	_, err = repo.CreateTemplate(context.Background(), Template{ID: 42, Name: "dup"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	reopened := NewFileTemplateRepository(path)
	all, err := reopened.ListTemplates(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Marble", all[0].Name)
}

func TestFileTemplateRepository_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileTemplateRepository(path).ListTemplates(context.Background(), "")
	assert.Error(t, err)
}
