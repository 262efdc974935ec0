package deps

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

const versionCheckTimeout = 5 * time.Second

// RemuxRequirement describes the ffmpeg binary used to remux HLS streams.
// Batch runs only download direct files, so ffmpeg is optional there.
func RemuxRequirement(binary string, optional bool) Requirement {
	return Requirement{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Remuxes HLS video streams into MP4",
		Optional:    optional,
	}
}

// CheckRemux resolves the remux binary and records its version line in
// Detail when it runs.
func CheckRemux(ctx context.Context, binary string, optional bool) Status {
	status := CheckBinaries([]Requirement{RemuxRequirement(binary, optional)})[0]
	if !status.Available {
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, versionCheckTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, status.Command, "-version").Output()
	if err != nil {
		status.Available = false
		status.Detail = "failed to run -version: " + err.Error()
		return status
	}
	status.Detail = firstLine(out)
	return status
}

func firstLine(out []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}
