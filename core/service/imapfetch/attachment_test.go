package imapfetch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAttachmentPath_RejectsDangerousExtension(t *testing.T) {
	err := validateAttachmentPath("invoice.exe")
	assert.ErrorIs(t, err, errDangerousExtension)
}

func TestValidateAttachmentPath_RejectsPathTraversal(t *testing.T) {
	err := validateAttachmentPath("../../etc/passwd.pdf")
	assert.ErrorIs(t, err, errPathTraversal)
}

func TestValidateAttachmentPath_RejectsReservedStem(t *testing.T) {
	err := validateAttachmentPath("CON.txt")
	assert.ErrorIs(t, err, errReservedStem)
}

func TestValidateAttachmentPath_RejectsMissingExtension(t *testing.T) {
	err := validateAttachmentPath("readme")
	assert.ErrorIs(t, err, errNoExtension)
}

func TestValidateAttachmentPath_RejectsDisallowedExtension(t *testing.T) {
	err := validateAttachmentPath("script.py")
	assert.ErrorIs(t, err, errDisallowedExtension)
}

func TestValidateAttachmentPath_AcceptsOrdinaryDocument(t *testing.T) {
	err := validateAttachmentPath("quarterly-report.pdf")
	assert.NoError(t, err)
}

func TestValidateAttachmentPath_RejectsForbiddenChars(t *testing.T) {
	err := validateAttachmentPath("weird<name>.pdf")
	assert.ErrorIs(t, err, errForbiddenChars)
}

func TestStoreAttachment_WritesFileUnderPerUserDir(t *testing.T) {
	root := t.TempDir()
	f := New(root, zerolog.Nop())

	att, err := f.storeAttachment(42, "inbox@example.com:987", "quarterly-report.pdf", "application/pdf", []byte("%PDF-fake"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "user_42"), filepath.Dir(att.StoredPath))
	assert.True(t, strings.HasPrefix(att.StoredFilename, "987_"))
	assert.True(t, strings.HasSuffix(att.StoredFilename, ".pdf"))

	data, err := os.ReadFile(att.StoredPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-fake", string(data))
}

func TestCleanedEmailID_StripsAccountPrefixAndCaps(t *testing.T) {
	assert.Equal(t, "987", cleanedEmailID("inbox@example.com:987"))
	assert.Equal(t, "12345678901234567890", cleanedEmailID("inbox@example.com:123456789012345678901234"))
	assert.Equal(t, "attachment", cleanedEmailID(":::"))
}
