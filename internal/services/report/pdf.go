package report

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"formatif-grader/internal/domain/model"
	"formatif-grader/internal/platform/hash"
)

// PDFResult describes a written PDF report.
type PDFResult struct {
	Path     string   `json:"path"`
	SHA256   string   `json:"sha256"`
	Warnings []string `json:"warnings,omitempty"`
}

// WritePDF renders rep as an A4 report at path.
func WritePDF(path string, rep *model.RunReport) (*PDFResult, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("pdf path is required")
	}
	pdf, utf8OK := buildPDF(rep)
	var warnings []string
	if !utf8OK {
		warnings = append(warnings, "no UTF-8 font found; non-ASCII text replaced with '?'")
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	sum, _, err := hash.File(path)
	if err != nil {
		return nil, fmt.Errorf("sha256 pdf: %w", err)
	}
	return &PDFResult{Path: path, SHA256: sum, Warnings: warnings}, nil
}

func buildPDF(rep *model.RunReport) (*gofpdf.Fpdf, bool) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle(rep.SuiteTitle+" - grading report", utf8Title(rep.SuiteTitle))

	font, utf8OK := initUnicodeFont(pdf)
	pdf.AddPage()

	pdf.SetFont(font, "B", 16)
	pdf.CellFormat(0, 9, safeText(rep.SuiteTitle, utf8OK), "", 1, "L", false, 0, "")
	pdf.SetFont(font, "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, "Generated at: "+fmtTime(rep.FinishedAt), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	sectionTitle(pdf, font, "1. Run")
	kv(pdf, font, utf8OK, "Run ID", rep.RunID)
	kv(pdf, font, utf8OK, "Suite", fmt.Sprintf("%s v%s", rep.SuiteID, rep.SuiteVersion))
	kv(pdf, font, utf8OK, "Suite SHA256", rep.SuiteSHA256)
	kv(pdf, font, utf8OK, "Repository", rep.RepoDir)
	kv(pdf, font, utf8OK, "Markers", rep.MarkersDir)
	kv(pdf, font, utf8OK, "Started", fmtTime(rep.StartedAt))
	kv(pdf, font, utf8OK, "Finished", fmtTime(rep.FinishedAt))
	s := rep.Summary
	kv(pdf, font, utf8OK, "Summary", fmt.Sprintf("%d checks: %d passed, %d failed, %d warned, %d skipped, %d info",
		s.Total, s.Passed, s.Failed, s.Warned, s.Skipped, s.Info))
	kv(pdf, font, utf8OK, "Outcome", outcome(rep))
	pdf.Ln(2)

	sectionTitle(pdf, font, "2. Checks")
	if len(rep.Results) == 0 {
		pdf.SetFont(font, "", 10)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 5, "(empty)", "", "L", false)
	}
	for _, r := range rep.Results {
		pdf.SetFont(font, "B", 10)
		statusColor(pdf, r.Status)
		head := fmt.Sprintf("[%s] %s", strings.ToUpper(string(r.Status)), r.Name)
		if a := Annotation(r, rep.WeightUnit); a != "" {
			head += " " + a
		}
		pdf.MultiCell(0, 5, safeText(head, utf8OK), "", "L", false)
		pdf.SetFont(font, "", 9)
		pdf.SetTextColor(40, 40, 40)
		if r.Message != "" {
			pdf.MultiCell(0, 4.5, safeText(r.Message, utf8OK), "", "L", false)
		}
		if len(r.Details) > 0 {
			pdf.MultiCell(0, 4.5, safeText(strings.Join(r.Details, "; "), utf8OK), "", "L", false)
		}
		if r.Hint != "" && !r.OK() {
			pdf.SetTextColor(120, 80, 0)
			pdf.MultiCell(0, 4.5, "hint: "+safeText(r.Hint, utf8OK), "", "L", false)
		}
		pdf.Ln(1)
	}

	if len(rep.Reminders) > 0 {
		pdf.Ln(2)
		sectionTitle(pdf, font, "3. Reminders")
		for _, rm := range rep.Reminders {
			pdf.SetFont(font, "B", 10)
			pdf.SetTextColor(20, 20, 20)
			pdf.MultiCell(0, 5, safeText(rm.Title, utf8OK), "", "L", false)
			pdf.SetFont(font, "", 9)
			pdf.SetTextColor(40, 40, 40)
			for _, l := range rm.Lines {
				pdf.MultiCell(0, 4.5, "- "+safeText(l, utf8OK), "", "L", false)
			}
		}
	}

	if rep.Closing != "" {
		pdf.Ln(3)
		pdf.SetFont(font, "", 9)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 4.5, safeText(rep.Closing, utf8OK), "", "L", false)
	}
	return pdf, utf8OK
}

func outcome(rep *model.RunReport) string {
	if rep.Passed() {
		return "all required checks passed"
	}
	return fmt.Sprintf("%d required check(s) failed", rep.Summary.RequiredFailed)
}

func statusColor(pdf *gofpdf.Fpdf, s model.CheckStatus) {
	switch s {
	case model.CheckPassed:
		pdf.SetTextColor(0, 110, 0)
	case model.CheckFailed:
		pdf.SetTextColor(170, 0, 0)
	case model.CheckWarned:
		pdf.SetTextColor(150, 100, 0)
	default:
		pdf.SetTextColor(40, 40, 120)
	}
}

func sectionTitle(pdf *gofpdf.Fpdf, font, title string) {
	pdf.SetFont(font, "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(pdf.GetX(), pdf.GetY(), 196, pdf.GetY())
	pdf.Ln(2)
}

func kv(pdf *gofpdf.Fpdf, font string, utf8OK bool, key, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	pdf.SetFont(font, "B", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(32, 5.2, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(font, "", 10)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(0, 5.2, safeText(value, utf8OK), "", "L", false)
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// safeText flattens newlines and, without a UTF-8 font, replaces anything
// outside printable ASCII. Check marks become plain letters first.
func safeText(s string, utf8OK bool) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ", "✓", "ok", "✗", "x").Replace(s)
	s = strings.TrimSpace(s)
	if utf8OK {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		} else {
			b.WriteRune('?')
		}
	}
	return b.String()
}

func utf8Title(s string) bool {
	for _, r := range s {
		if r > 126 {
			return true
		}
	}
	return false
}

// initUnicodeFont loads a TrueType font so accented output survives.
// GRADER_PDF_FONT wins over the per-OS candidates; Helvetica is the fallback.
func initUnicodeFont(pdf *gofpdf.Fpdf) (family string, utf8OK bool) {
	const familyName = "unicode"
	var candidates []string
	if v := strings.TrimSpace(os.Getenv("GRADER_PDF_FONT")); v != "" {
		candidates = append(candidates, v)
	}
	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates, "/System/Library/Fonts/Supplemental/Arial Unicode.ttf")
	case "windows":
		candidates = append(candidates, `C:\Windows\Fonts\arial.ttf`, `C:\Windows\Fonts\segoeui.ttf`)
	default:
		candidates = append(candidates,
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/TTF/DejaVuSans.ttf",
		)
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		pdf.AddUTF8Font(familyName, "", p)
		if pdf.Err() {
			pdf.ClearError()
			continue
		}
		pdf.AddUTF8Font(familyName, "B", p)
		if pdf.Err() {
			pdf.ClearError()
		}
		return familyName, true
	}
	return "Helvetica", false
}
