package recognition

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"

	"github.com/abhisek/gradekit/internal/model"
)

// TesseractRecognizer is the local fallback. It cleans up the scan, runs
// the tesseract binary and assembles rows from its TSV output.
type TesseractRecognizer struct {
	Binary  string
	Lang    string
	Timeout time.Duration

	// MinWidth upscales narrower scans; small handwriting OCRs badly.
	MinWidth int
}

// NewTesseractRecognizer returns a recognizer for simplified Chinese and
// English exam sheets.
func NewTesseractRecognizer() *TesseractRecognizer {
	return &TesseractRecognizer{
		Binary:   "tesseract",
		Lang:     "chi_sim+eng",
		Timeout:  20 * time.Second,
		MinWidth: 1600,
	}
}

func (t *TesseractRecognizer) Name() string { return "local-ocr" }

func (t *TesseractRecognizer) Recognize(ctx context.Context, scan Scan) ([]model.RecognizedRow, error) {
	img, err := decodeScan(scan)
	if err != nil {
		return nil, t.fail(err)
	}
	img = preprocess(img, t.MinWidth)

	f, err := os.CreateTemp("", "scan-*.png")
	if err != nil {
		return nil, t.fail(err)
	}
	defer func() { f.Close(); os.Remove(f.Name()) }()

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		return nil, t.fail(fmt.Errorf("encode preprocessed scan: %w", err))
	}
	if err := f.Close(); err != nil {
		return nil, t.fail(err)
	}

	out, err := t.exec(ctx, f.Name())
	if err != nil {
		return nil, t.fail(err)
	}

	lines, err := parseTSV(out)
	if err != nil {
		return nil, t.fail(err)
	}
	return AssembleRows(lines), nil
}

func (t *TesseractRecognizer) fail(err error) error {
	return &model.AdapterInvocationError{Adapter: t.Name(), Err: err}
}

func (t *TesseractRecognizer) exec(ctx context.Context, inPath string) (string, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return "", fmt.Errorf("%s not found in PATH", bin)
	}

	args := []string{inPath, "stdout", "--psm", "6"}
	if t.Lang != "" {
		args = append(args, "-l", t.Lang)
	}
	args = append(args, "tsv")

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("tesseract: %w", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", errors.New(msg)
	}
	return out.String(), nil
}

// decodeScan sniffs the format first since phone uploads often arrive
// with a misleading extension or none at all.
func decodeScan(scan Scan) (image.Image, error) {
	if len(scan.Data) == 0 {
		return nil, errors.New("empty scan")
	}
	mime := scan.MIMEType
	if mime == "" || mime == "application/octet-stream" {
		mime = sniffMIME(scan.Data)
	}

	switch {
	case strings.Contains(mime, "webp"):
		img, err := webp.Decode(bytes.NewReader(scan.Data))
		if err != nil {
			return nil, fmt.Errorf("decode webp: %w", err)
		}
		return img, nil
	default:
		img, err := imaging.Decode(bytes.NewReader(scan.Data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", mime, err)
		}
		return img, nil
	}
}

// preprocess converts to grayscale, upscales narrow scans and boosts
// contrast so faint pencil strokes survive binarization.
func preprocess(img image.Image, minWidth int) image.Image {
	gray := imaging.Grayscale(img)
	if minWidth > 0 && gray.Bounds().Dx() < minWidth {
		gray = imaging.Resize(gray, minWidth, 0, imaging.Lanczos)
	}
	gray = imaging.AdjustContrast(gray, 30)
	return imaging.Sharpen(gray, 1)
}

type tsvWord struct {
	block, par, line int
	top, left        int
	conf             float64
	text             string
}

// parseTSV turns tesseract's word-level TSV into lines in reading order.
// Line confidence is the mean of its word confidences, scaled to [0, 1].
func parseTSV(out string) ([]Line, error) {
	type key struct{ block, par, line int }
	type acc struct {
		top, left int
		words     []string
		confSum   float64
	}

	groups := map[key]*acc{}
	var order []key

	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		w, ok, err := parseTSVWord(sc.Text())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		k := key{w.block, w.par, w.line}
		g, seen := groups[k]
		if !seen {
			g = &acc{top: w.top, left: w.left}
			groups[k] = g
			order = append(order, k)
		}
		g.words = append(g.words, w.text)
		g.confSum += w.conf
		g.top = min(g.top, w.top)
		g.left = min(g.left, w.left)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tesseract output: %w", err)
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := groups[order[i]], groups[order[j]]
		if a.top != b.top {
			return a.top < b.top
		}
		return a.left < b.left
	})

	lines := make([]Line, 0, len(order))
	for _, k := range order {
		g := groups[k]
		lines = append(lines, Line{
			Text:       joinWords(g.words),
			Confidence: g.confSum / float64(len(g.words)) / 100,
		})
	}
	return lines, nil
}

// parseTSVWord reads one row of level,page,block,par,line,word,left,top,
// width,height,conf,text. Non-word rows and empty words are skipped.
func parseTSVWord(row string) (tsvWord, bool, error) {
	cols := strings.SplitN(row, "\t", 12)
	if len(cols) < 12 {
		return tsvWord{}, false, nil
	}
	if cols[0] != "5" {
		return tsvWord{}, false, nil
	}
	text := strings.TrimSpace(cols[11])
	if text == "" {
		return tsvWord{}, false, nil
	}

	ints := make([]int, 0, 6)
	for _, idx := range []int{2, 3, 4, 6, 7} {
		n, err := strconv.Atoi(cols[idx])
		if err != nil {
			return tsvWord{}, false, fmt.Errorf("tesseract tsv column %d: %w", idx, err)
		}
		ints = append(ints, n)
	}
	conf, err := strconv.ParseFloat(cols[10], 64)
	if err != nil {
		return tsvWord{}, false, fmt.Errorf("tesseract tsv confidence: %w", err)
	}
	if conf < 0 {
		conf = 0
	}

	return tsvWord{
		block: ints[0], par: ints[1], line: ints[2],
		left: ints[3], top: ints[4],
		conf: conf, text: text,
	}, true, nil
}

// joinWords joins with spaces, except between two CJK characters where
// tesseract splits glyphs that belong together.
func joinWords(words []string) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 && !(endsCJK(words[i-1]) && startsCJK(w)) {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	return b.String()
}

func startsCJK(s string) bool {
	for _, r := range s {
		return isCJK(r)
	}
	return false
}

func endsCJK(s string) bool {
	rs := []rune(s)
	return len(rs) > 0 && isCJK(rs[len(rs)-1])
}

func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}
