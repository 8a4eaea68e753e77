package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpegSource decodes a video with the ffmpeg and ffprobe executables.
type FFmpegSource struct {
	Path    string
	FFmpeg  string
	FFprobe string

	fps float64
}

// OpenFFmpeg probes path and returns a source for it. Missing files and
// files without a video stream return ErrMedia.
func OpenFFmpeg(ctx context.Context, path, ffmpegBin, ffprobeBin string) (*FFmpegSource, error) {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMedia, err)
	}

	out, err := exec.CommandContext(ctx, ffprobeBin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate,avg_frame_rate",
		"-of", "json",
		path,
	).Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe: %v", ErrMedia, err)
	}

	fps, err := parseProbe(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMedia, err)
	}
	return &FFmpegSource{Path: path, FFmpeg: ffmpegBin, FFprobe: ffprobeBin, fps: fps}, nil
}

type probeOutput struct {
	Streams []struct {
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// parseProbe extracts the frame rate from ffprobe JSON. A stream without a
// usable rate reports 0 so the sampler falls back to its default.
func parseProbe(data []byte) (float64, error) {
	var p probeOutput
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(p.Streams) == 0 {
		return 0, errors.New("no video stream")
	}
	s := p.Streams[0]
	if fps := parseRate(s.AvgFrameRate); fps > 0 {
		return fps, nil
	}
	return parseRate(s.RFrameRate), nil
}

// parseRate parses "30000/1001" or "25" style rates; bad input yields 0.
func parseRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func (s *FFmpegSource) FrameRate() float64 { return s.fps }

// Frames streams every decoded frame as MJPEG through a pipe.
func (s *FFmpegSource) Frames(ctx context.Context, fn func(int, []byte) error) error {
	cmd := exec.CommandContext(ctx, s.FFmpeg,
		"-v", "error",
		"-i", s.Path,
		"-vsync", "passthrough",
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "2",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: ffmpeg: %v", ErrMedia, err)
	}

	splitErr := SplitJPEG(stdout, fn)
	if splitErr != nil {
		// Drain so ffmpeg is not blocked writing when we stop early.
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()

	if splitErr != nil {
		return splitErr
	}
	if waitErr != nil {
		return fmt.Errorf("%w: ffmpeg: %v: %s", ErrMedia, waitErr, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// SplitJPEG splits a concatenated stream of baseline or progressive JPEG
// images, calling fn with each image and its 0-based index.
func SplitJPEG(r io.Reader, fn func(int, []byte) error) error {
	br := bufio.NewReaderSize(r, 1<<16)
	for idx := 0; ; idx++ {
		frame, err := readJPEG(br)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read frame %d: %w", idx, err)
		}
		if err := fn(idx, frame); err != nil {
			return err
		}
	}
}

// readJPEG reads one image from SOI to EOI by walking its marker segments,
// so 0xFFD9 bytes inside tables or entropy-coded data are not mistaken for
// the end of the image.
func readJPEG(br *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer

	soi := make([]byte, 2)
	if _, err := io.ReadFull(br, soi); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, err
		}
		return nil, io.EOF
	}
	if soi[0] != 0xFF || soi[1] != 0xD8 {
		return nil, fmt.Errorf("missing start of image marker, got %#x %#x", soi[0], soi[1])
	}
	buf.Write(soi)

	for {
		marker, err := readMarker(br, &buf)
		if err != nil {
			return nil, err
		}
		switch {
		case marker == 0xD9:
			return buf.Bytes(), nil
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			continue
		}

		var lenBytes [2]byte
		if _, err := io.ReadFull(br, lenBytes[:]); err != nil {
			return nil, unexpected(err)
		}
		buf.Write(lenBytes[:])
		length := int(lenBytes[0])<<8 | int(lenBytes[1])
		if length < 2 {
			return nil, fmt.Errorf("invalid segment length %d", length)
		}
		if _, err := io.CopyN(&buf, br, int64(length-2)); err != nil {
			return nil, unexpected(err)
		}

		if marker == 0xDA {
			if err := copyScan(br, &buf); err != nil {
				return nil, err
			}
		}
	}
}

// readMarker consumes 0xFF (plus any fill bytes) and returns the marker code.
func readMarker(br *bufio.Reader, buf *bytes.Buffer) (byte, error) {
	b, err := br.ReadByte()
	if err != nil {
		return 0, unexpected(err)
	}
	if b != 0xFF {
		return 0, fmt.Errorf("expected marker, got %#x", b)
	}
	for {
		code, err := br.ReadByte()
		if err != nil {
			return 0, unexpected(err)
		}
		if code == 0xFF {
			continue
		}
		buf.WriteByte(0xFF)
		buf.WriteByte(code)
		return code, nil
	}
}

// copyScan copies entropy-coded data up to, but not including, the next
// marker that is not a stuffed byte or restart marker.
func copyScan(br *bufio.Reader, buf *bytes.Buffer) error {
	for {
		next, err := br.Peek(2)
		if err != nil {
			return unexpected(err)
		}
		if next[0] != 0xFF {
			buf.WriteByte(next[0])
			br.Discard(1)
			continue
		}
		if next[1] != 0x00 && (next[1] < 0xD0 || next[1] > 0xD7) {
			return nil
		}
		buf.Write(next)
		br.Discard(2)
	}
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
