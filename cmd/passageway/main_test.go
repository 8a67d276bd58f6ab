package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/passageway/passageway"
	"github.com/passageway/passageway/retriever"
)

func writeDocumentsFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "documents.jsonl")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestReadDocuments(t *testing.T) {
	assert := assert.New(t)

	file := writeDocumentsFile(t, `
{"id": "doc_fleming", "values": {"text": "Alexander Fleming discovered penicillin in 1928."}}

{"values": {"text": "Penicillin is a group of antibiotics."}}
{"id": "doc_lovelace", "values": {"text": "Ada Lovelace wrote the first published computer program."}, "embedding": [0, 1, 0]}
`)

	docs, err := readDocuments(file, "text")
	assert.NoError(err)
	assert.Len(docs, 3)

	assert.Equal("doc_fleming", docs[0].ID)
	assert.Empty(docs[0].Embedding)

	// Blank lines are skipped; a missing id is derived from the content.
	assert.Equal(passageway.DocumentID("Penicillin is a group of antibiotics."), docs[1].ID)

	assert.Equal("doc_lovelace", docs[2].ID)
	assert.Equal([]float32{0, 1, 0}, docs[2].Embedding)
}

func TestReadDocumentsMissingIDAndContent(t *testing.T) {
	assert := assert.New(t)

	// The second document carries neither an id nor a text value, so
	// a derived id would be DocumentID("") for every such document.
	file := writeDocumentsFile(t, `
{"values": {"text": "Penicillin is a group of antibiotics."}}
{"values": {"title": "Untitled"}}
`)

	_, err := readDocuments(file, "text")
	assert.ErrorIs(err, retriever.ErrInvalidDocument)
	assert.ErrorContains(err, "line 3")
}

func TestReadDocumentsEmptyFile(t *testing.T) {
	assert := assert.New(t)

	file := writeDocumentsFile(t, "\n\n")

	_, err := readDocuments(file, "text")
	assert.EqualError(err, "no documents found")
}
