package fsutil

// File and directory permission constants used for everything written into a
// bundle or the config directory.
const (
	FileModeDefault = 0o644 // -rw-r--r--
	FileModeSecure  = 0o600 // -rw------- config files that may hold API keys
	FileModeExec    = 0o755 // -rwxr-xr-x launch scripts

	DirModeDefault = 0o755 // drwxr-xr-x
	DirModePrivate = 0o700 // drwx------
)
