package compose

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/relaymail/internal/attach"
	"github.com/nhle/relaymail/internal/mailstate"
)

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, validateAddress("a@b.com"))
	assert.NoError(t, validateAddress(" Ann <ann@example.com> "))
	assert.NoError(t, validateAddress(""))
	assert.NoError(t, validateAddress("   "))
	assert.Error(t, validateAddress("not an address"))
}

func TestSubmitPushesFormIntoComposer(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tmp/a.txt", []byte("A"), 0o644))

	c := mailstate.NewComposer(nil, nil)
	m := New(c, attach.NewLoader(fs), 80, 24)
	m.Init()

	m.fb.to = " a@b.com "
	m.fb.subject = "Test"
	m.fb.body = "Hello"
	require.NoError(t, m.loadAttachments("/tmp/a.txt"))

	require.NotNil(t, m.handleSubmit())

	d := c.Draft()
	assert.Equal(t, "a@b.com", d.To)
	assert.Equal(t, "Test", d.Subject)
	assert.Equal(t, "Hello", d.Text)
	require.Len(t, c.Attachments(), 1)
	assert.Equal(t, "a.txt", c.Attachments()[0].Name)
}

func TestRebuildFromEmptyDraftClearsAttachments(t *testing.T) {
	c := mailstate.NewComposer(nil, nil)
	m := New(c, attach.NewLoader(afero.NewMemMapFs()), 80, 24)
	m.Init()
	m.fb.attachments = "/tmp/a.txt"

	m.Rebuild()

	assert.Empty(t, m.fb.attachments)
	assert.Empty(t, m.fb.to)
	assert.Contains(t, m.View(), "New Message")
}
