package bundle

import (
	"archive/zip"
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Item statuses.
const (
	StatusOK       = "ok"
	StatusMissing  = "missing"
	StatusMismatch = "mismatch"
	StatusError    = "error"
)

// VerifyItem is the outcome for one listed file.
type VerifyItem struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// VerifyResult summarizes a bundle check.
type VerifyResult struct {
	Total    int          `json:"total"`
	OK       int          `json:"ok"`
	Failed   int          `json:"failed"`
	Items    []VerifyItem `json:"items"`
	Manifest *Manifest    `json:"manifest,omitempty"`
}

// Verify recomputes the sha256 of every file named in hashes.sha256.
// Files present in the zip but absent from the list are not reported.
func Verify(zipPath string) (*VerifyResult, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
	}
	list, ok := files[hashesName]
	if !ok {
		return nil, fmt.Errorf("%s not found in zip", hashesName)
	}
	raw, err := readAll(list)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", hashesName, err)
	}

	res := &VerifyResult{}
	sc := bufio.NewScanner(strings.NewReader(string(raw)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sha, p, ok := strings.Cut(line, "  ")
		if !ok || len(sha) != 64 || strings.TrimSpace(p) == "" {
			continue
		}
		res.Items = append(res.Items, check(files, strings.TrimSpace(p), sha))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", hashesName, err)
	}

	for _, it := range res.Items {
		res.Total++
		if it.Status == StatusOK {
			res.OK++
		} else {
			res.Failed++
		}
	}

	if mf, ok := files[manifestName]; ok {
		if b, err := readAll(mf); err == nil {
			var m Manifest
			if json.Unmarshal(b, &m) == nil {
				res.Manifest = &m
			}
		}
	}
	return res, nil
}

func check(files map[string]*zip.File, p, want string) VerifyItem {
	it := VerifyItem{Path: p, Expected: want}
	f, ok := files[p]
	if !ok {
		it.Status = StatusMissing
		return it
	}
	rc, err := f.Open()
	if err != nil {
		it.Status, it.Error = StatusError, err.Error()
		return it
	}
	defer rc.Close()
	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		it.Status, it.Error = StatusError, err.Error()
		return it
	}
	it.Actual = hex.EncodeToString(h.Sum(nil))
	if strings.EqualFold(it.Actual, want) {
		it.Status = StatusOK
	} else {
		it.Status = StatusMismatch
	}
	return it
}

func readAll(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
