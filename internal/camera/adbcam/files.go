package adbcam

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/camera"
)

// remoteFile is one entry of the device photo directory listing.
type remoteFile struct {
	Name string
	Size int64
}

// listPhotos runs `ls -l` on the device photo directory and parses it into
// name/size pairs. Non-file lines (totals, subdirectories) are skipped.
func (d *Driver) listPhotos(ctx context.Context) (map[string]int64, error) {
	lines, err := d.runner.Run(ctx, "shell", "ls", "-l", d.cfg.PhotoDir)
	if err != nil {
		return nil, err
	}
	files := make(map[string]int64, len(lines))
	for _, line := range lines {
		file, ok := parseListingLine(line)
		if !ok {
			continue
		}
		files[file.Name] = file.Size
	}
	return files, nil
}

// parseListingLine understands toybox `ls -l` output:
//
//	-rw-rw---- 1 root sdcard_rw 4194304 2024-05-01 12:00 IMG_20240501_120000.jpg
func parseListingLine(line string) (remoteFile, bool) {
	if !strings.HasPrefix(line, "-") {
		return remoteFile{}, false
	}
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return remoteFile{}, false
	}
	size, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return remoteFile{}, false
	}
	// Filenames may contain spaces; everything past the time field is the name.
	name := strings.Join(fields[7:], " ")
	if name == "" {
		return remoteFile{}, false
	}
	return remoteFile{Name: name, Size: size}, true
}

// findNewPhoto returns the first file that was absent from the pre-shutter
// snapshot, matches the configured pattern and has already grown past zero
// bytes.
func findNewPhoto(snapshot, current map[string]int64, pattern *regexp.Regexp) (remoteFile, bool) {
	for name, size := range current {
		if _, existed := snapshot[name]; existed {
			continue
		}
		if !pattern.MatchString(name) {
			continue
		}
		if size <= 0 {
			continue
		}
		return remoteFile{Name: name, Size: size}, true
	}
	return remoteFile{}, false
}

// jpegSignature is the SOI marker every valid capture must start with.
var jpegSignature = []byte{0xFF, 0xD8, 0xFF}

func validateJPEG(data []byte) error {
	if len(data) < len(jpegSignature) {
		return camera.Errorf(camera.ErrProtocolViolation, "pulled file too short (%d bytes)", len(data))
	}
	for i, b := range jpegSignature {
		if data[i] != b {
			return camera.Errorf(camera.ErrProtocolViolation, "pulled file is not a JPEG (starts %x)", data[:3])
		}
	}
	return nil
}
