package imapfetch

import "errors"

var (
	errEmptyFilename       = errors.New("attachment: empty filename")
	errForbiddenChars      = errors.New("attachment: forbidden character in filename")
	errPathTraversal       = errors.New("attachment: path traversal in filename")
	errAbsolutePath        = errors.New("attachment: absolute path in filename")
	errReservedStem        = errors.New("attachment: windows reserved name")
	errNoExtension         = errors.New("attachment: missing extension")
	errDangerousExtension  = errors.New("attachment: dangerous extension")
	errDisallowedExtension = errors.New("attachment: extension not in allow-list")
	errTooLarge            = errors.New("attachment: exceeds size limit")
)
