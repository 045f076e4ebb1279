package imapfetch

import (
	"strings"
)

const maxAttachmentBytes = 50 * 1024 * 1024

var dangerousExtensions = map[string]struct{}{
	"exe": {}, "bat": {}, "cmd": {}, "com": {}, "pif": {}, "scr": {}, "vbs": {},
	"js": {}, "jar": {}, "msi": {}, "dll": {}, "sys": {}, "scf": {}, "lnk": {},
	"reg": {}, "ps1": {},
}

var allowedExtensions = map[string]struct{}{
	// documents
	"pdf": {}, "doc": {}, "docx": {}, "xls": {}, "xlsx": {}, "ppt": {}, "pptx": {}, "odt": {}, "ods": {}, "odp": {}, "rtf": {}, "csv": {},
	// images
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "bmp": {}, "webp": {}, "svg": {}, "tiff": {}, "heic": {},
	// audio/video
	"mp3": {}, "wav": {}, "m4a": {}, "ogg": {}, "mp4": {}, "mov": {}, "avi": {}, "mkv": {}, "webm": {},
	// archives
	"zip": {}, "rar": {}, "7z": {}, "tar": {}, "gz": {}, "bz2": {},
	// calendar/vcard
	"ics": {}, "vcf": {},
	// source/text
	"txt": {}, "md": {}, "json": {}, "xml": {}, "log": {},
	// mail containers
	"eml": {}, "msg": {},
}

var windowsReservedStems = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {}, "com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {}, "lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

const forbiddenPathChars = "<>:\"|?*"

// validateAttachmentPath checks a decoded, trimmed filename against the hard
// attachment policy rules. It does not check size; callers check that
// separately against the part's actual byte length.
func validateAttachmentPath(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errEmptyFilename
	}
	if strings.ContainsAny(trimmed, forbiddenPathChars) {
		return errForbiddenChars
	}
	if strings.Contains(trimmed, "\x00") {
		return errForbiddenChars
	}
	if strings.Contains(trimmed, "..") {
		return errPathTraversal
	}
	if strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "\\") {
		return errAbsolutePath
	}

	ext := extensionOf(trimmed)
	stem := stemOf(trimmed)
	if _, reserved := windowsReservedStems[strings.ToLower(stem)]; reserved {
		return errReservedStem
	}
	if ext == "" {
		return errNoExtension
	}
	if _, dangerous := dangerousExtensions[ext]; dangerous {
		return errDangerousExtension
	}
	if _, allowed := allowedExtensions[ext]; !allowed {
		return errDisallowedExtension
	}
	return nil
}

func extensionOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

func stemOf(name string) string {
	base := name
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
