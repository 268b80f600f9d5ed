package capture

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// imageExtensions maps file extensions to MIME types.
var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// FromFile loads an image off disk. The extension decides the media type.
func FromFile(path string) (Attachment, error) {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	mediaType, ok := imageExtensions[ext]
	if !ok {
		return Attachment{}, fmt.Errorf("unsupported image format: %s", ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("cannot stat image: %w", err)
	}
	if info.Size() > MaxImageBytes {
		return Attachment{}, fmt.Errorf("image too large: %d bytes (max %d)", info.Size(), MaxImageBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("cannot read image: %w", err)
	}
	return FromBytes(data, mediaType, filepath.Base(path))
}

// FromClipboard reads an image from the system clipboard.
// macOS: osascript writes the clipboard to a temp PNG.
// Linux: xclip reads PNG data directly.
func FromClipboard() (Attachment, error) {
	switch runtime.GOOS {
	case "darwin":
		return clipboardMac()
	case "linux":
		return clipboardLinux()
	default:
		return Attachment{}, fmt.Errorf("clipboard image not supported on %s", runtime.GOOS)
	}
}

func clipboardMac() (Attachment, error) {
	tmpFile, err := os.CreateTemp("", "drai-clip-*.png")
	if err != nil {
		return Attachment{}, fmt.Errorf("cannot create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	script := fmt.Sprintf(`
		set imgData to the clipboard as «class PNGf»
		set fp to open for access POSIX file %q with write permission
		write imgData to fp
		close access fp
	`, tmpPath)

	cmd := exec.Command("osascript", "-e", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return Attachment{}, fmt.Errorf("no image in clipboard: %s", strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil || len(data) == 0 {
		return Attachment{}, fmt.Errorf("clipboard image is empty")
	}
	return FromBytes(data, "image/png", "clipboard.png")
}

func clipboardLinux() (Attachment, error) {
	cmd := exec.Command("xclip", "-selection", "clipboard", "-t", "image/png", "-o")
	data, err := cmd.Output()
	if err != nil {
		return Attachment{}, fmt.Errorf("no image in clipboard (install xclip): %w", err)
	}
	if len(data) == 0 {
		return Attachment{}, fmt.Errorf("clipboard image is empty")
	}
	return FromBytes(data, "image/png", "clipboard.png")
}
