package video

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/incident.report/internal/fsutil"
	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/timeutil"
)

// Custody constants.
const (
	HashAlgorithm    = "SHA-256"
	MissingHash      = "N/A"
	DefaultHandledBy = "Incident Forensic System"
)

// CustodyRecorder hashes evidence into custody records.
type CustodyRecorder struct {
	FS    fsutil.FileSystem
	Clock timeutil.Clock
}

// Record builds the custody record for a video and its sampled frames.
// A missing video records MissingHash; missing frames are skipped.
func (c CustodyRecorder) Record(caseID, videoPath string, frames []SampledFrame, handledBy string) report.CustodyRecord {
	fsys, clock := c.defaults()
	if handledBy == "" {
		handledBy = DefaultHandledBy
	}

	fileHash, err := hashFile(fsys, videoPath)
	if err != nil {
		fileHash = MissingHash
	}

	hashes := []report.FrameHash{}
	for _, f := range frames {
		h, err := hashFile(fsys, f.Path)
		if err != nil {
			continue
		}
		hashes = append(hashes, report.FrameHash{Frame: filepath.Base(f.Path), SHA256: h})
	}

	return report.CustodyRecord{
		CaseID:    caseID,
		FileHash:  fileHash,
		Timestamp: clock.Now().UTC(),
		HandledBy: handledBy,
		Evidence: report.CustodyEvidence{
			VideoFile:    filepath.Base(videoPath),
			VideoSHA256:  fileHash,
			FramesHashed: len(hashes),
		},
		FrameHashes: hashes,
		Integrity:   report.Integrity{Algorithm: HashAlgorithm, Verified: true},
	}
}

// Mismatch names an evidence file whose current digest differs from the
// recorded one. Actual is MissingHash when the file is gone.
type Mismatch struct {
	File     string `json:"file"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Verification is the result of re-hashing a case's evidence.
type Verification struct {
	CaseID     string     `json:"case_id"`
	Verified   bool       `json:"verified"`
	Checked    int        `json:"checked"`
	Mismatches []Mismatch `json:"mismatches"`
}

// Verify re-hashes the video and frames named by rec. The record itself is
// only read. Frame names resolve against framesDir.
func (c CustodyRecorder) Verify(rec report.CustodyRecord, videoPath, framesDir string) Verification {
	fsys, _ := c.defaults()
	v := Verification{CaseID: rec.CaseID, Mismatches: []Mismatch{}}

	check := func(file, path, expected string) {
		v.Checked++
		actual, err := hashFile(fsys, path)
		if err != nil {
			actual = MissingHash
		}
		if actual != expected {
			v.Mismatches = append(v.Mismatches, Mismatch{File: file, Expected: expected, Actual: actual})
		}
	}

	if rec.FileHash != MissingHash {
		check(rec.Evidence.VideoFile, videoPath, rec.FileHash)
	}
	for _, fh := range rec.FrameHashes {
		check(fh.Frame, filepath.Join(framesDir, fh.Frame), fh.SHA256)
	}
	v.Verified = len(v.Mismatches) == 0
	return v
}

func (c CustodyRecorder) defaults() (fsutil.FileSystem, timeutil.Clock) {
	fsys, clock := c.FS, c.Clock
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return fsys, clock
}

func hashFile(fsys fsutil.FileSystem, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
