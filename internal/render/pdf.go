// Package render turns stored case reports into documents and charts for
// investigators: PDF reports, an HTML severity timeline and PNG plots.
package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"

	"github.com/banshee-data/incident.report/internal/report"
)

const (
	pageMargin = 15.0
	lineHeight = 6.0
	labelWidth = 50.0
	evidenceW  = 120.0
)

type pdfDoc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newPDF(title string, at time.Time) *pdfDoc {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(title, true)
	pdf.SetCreator(report.SystemName, true)
	pdf.SetCreationDate(at)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pageMargin)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s - page %d/{nb}", report.Disclaimer, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	return &pdfDoc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *pdfDoc) heading(text string) {
	d.pdf.Ln(2)
	d.pdf.SetFont("Helvetica", "B", 13)
	d.pdf.CellFormat(0, 8, d.tr(text), "B", 1, "L", false, 0, "")
	d.pdf.Ln(1)
}

func (d *pdfDoc) field(label, value string) {
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.CellFormat(labelWidth, lineHeight, d.tr(label), "", 0, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.MultiCell(0, lineHeight, d.tr(value), "", "L", false)
}

func (d *pdfDoc) paragraph(text string) {
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.MultiCell(0, lineHeight, d.tr(text), "", "L", false)
}

// table writes a header row then rows; widths are in mm.
func (d *pdfDoc) table(widths []float64, header []string, rows [][]string) {
	d.pdf.SetFont("Helvetica", "B", 9)
	d.pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		d.pdf.CellFormat(widths[i], lineHeight, d.tr(h), "1", 0, "L", true, 0, "")
	}
	d.pdf.Ln(-1)
	d.pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		for i, cell := range row {
			d.pdf.CellFormat(widths[i], lineHeight, d.tr(cell), "1", 0, "L", false, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *pdfDoc) image(name string, jpeg []byte) {
	if len(jpeg) == 0 {
		return
	}
	opts := fpdf.ImageOptions{ImageType: "JPG"}
	d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(jpeg))
	if d.pdf.Err() {
		return
	}
	d.pdf.ImageOptions(name, pageMargin, d.pdf.GetY()+2, evidenceW, 0, true, opts, 0, "")
}

func (d *pdfDoc) output(w io.Writer) error {
	if err := d.pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}

// CasePDF writes an image case report. annotated, when non-empty, is the
// annotated evidence JPEG embedded under the summary.
func CasePDF(w io.Writer, rep *report.CaseReport, annotated []byte) error {
	d := newPDF("Forensic case "+rep.Case.CaseID, rep.Case.GeneratedAt)

	d.pdf.SetFont("Helvetica", "B", 16)
	d.pdf.CellFormat(0, 10, d.tr("Forensic Case Report"), "", 1, "L", false, 0, "")
	d.field("Case", rep.Case.CaseID)
	d.field("Generated", rep.Case.GeneratedAt.UTC().Format(time.RFC3339))
	d.field("System", rep.Case.System)

	d.heading("Scene")
	d.field("Summary", rep.Scene.Summary)
	d.field("Collision type", rep.Scene.CollisionType)
	d.field("Collision overlap", fmt.Sprintf("%.3f", rep.Scene.CollisionOverlap))

	d.heading("Severity")
	d.field("Score", fmt.Sprintf("%d (%s)", rep.Analysis.Severity.Score, rep.Analysis.Severity.Level))
	d.field("Pedestrian involved", yesNo(rep.Analysis.RiskFactors.PedestrianInvolved))
	d.field("Multiple vehicles", yesNo(rep.Analysis.RiskFactors.MultiVehicle))

	if len(rep.Entities.Vehicles) > 0 {
		d.heading("Fault allocation")
		if rep.Analysis.FaultAllocation.PrimaryVehicle != "" {
			d.field("Primary vehicle", rep.Analysis.FaultAllocation.PrimaryVehicle)
		}
		rows := make([][]string, 0, len(rep.Entities.Vehicles))
		for _, v := range rep.Entities.Vehicles {
			rows = append(rows, []string{
				v.ID, v.Type,
				fmt.Sprintf("%.2f", v.Confidence),
				fmt.Sprintf("%.2f%%", v.FaultPercent),
			})
		}
		d.table([]float64{40, 40, 40, 40}, []string{"Vehicle", "Type", "Confidence", "Fault"}, rows)
	}

	if len(rep.Entities.Persons) > 0 {
		d.heading("Persons")
		rows := make([][]string, 0, len(rep.Entities.Persons))
		for _, p := range rep.Entities.Persons {
			age := "unknown"
			if p.Age != nil {
				age = fmt.Sprint(*p.Age)
			}
			rows = append(rows, []string{p.ID, p.Role, p.RiskLevel, p.Gender, age, p.Category})
		}
		d.table([]float64{30, 30, 25, 30, 25, 40}, []string{"Person", "Role", "Risk", "Gender", "Age", "Category"}, rows)
	}

	if len(rep.Analysis.LicensePlates) > 0 {
		d.heading("Licence plates")
		rows := make([][]string, 0, len(rep.Analysis.LicensePlates))
		for _, p := range rep.Analysis.LicensePlates {
			rows = append(rows, []string{p.Plate, fmt.Sprintf("%.2f", p.Confidence)})
		}
		d.table([]float64{60, 40}, []string{"Plate", "Confidence"}, rows)
	}

	d.heading("Reconstruction")
	d.paragraph(rep.Narrative.Reconstruction)
	if rep.Explanation != "" {
		d.heading("Explanation")
		d.paragraph(rep.Explanation)
	}

	d.heading("Evidence")
	d.field("Original image", rep.Evidence.OriginalImage)
	d.field("Annotated image", rep.Evidence.AnnotatedImage)
	if rep.Evidence.ContentHash != "" {
		d.field("Content hash", rep.Evidence.ContentHash)
	}
	d.image("annotated", annotated)

	return d.output(w)
}

// VideoPDF writes a video case report including its chain of custody.
func VideoPDF(w io.Writer, rep *report.VideoReport) error {
	d := newPDF("Forensic video case "+rep.Case.CaseID, rep.Case.GeneratedAt)

	d.pdf.SetFont("Helvetica", "B", 16)
	d.pdf.CellFormat(0, 10, d.tr("Forensic Video Case Report"), "", 1, "L", false, 0, "")
	d.field("Case", rep.Case.CaseID)
	d.field("Generated", rep.Case.GeneratedAt.UTC().Format(time.RFC3339))
	d.field("Video", rep.Evidence.VideoFile)
	d.field("Frames analysed", fmt.Sprintf("%d at %.1f fps (source %.2f fps)",
		rep.Scene.TotalFramesAnalyzed, rep.Scene.VideoFPS, rep.Scene.SourceFPS))

	d.heading("Severity")
	d.field("Average", fmt.Sprintf("%.1f (%s)", rep.Analysis.Severity.Score, rep.Analysis.Severity.Level))
	d.field("Peak", fmt.Sprint(rep.Analysis.Aggregation.PeakSeverity))

	if len(rep.Analysis.Aggregation.VehicleFaults) > 0 {
		d.heading("Average fault per vehicle")
		rows := make([][]string, 0, len(rep.Analysis.Aggregation.VehicleFaults))
		for _, vf := range rep.Analysis.Aggregation.VehicleFaults {
			rows = append(rows, []string{vf.VehicleID, fmt.Sprintf("%.2f%%", vf.FaultPercent)})
		}
		d.table([]float64{60, 40}, []string{"Vehicle", "Fault"}, rows)
	}

	d.heading("Timeline")
	rows := make([][]string, 0, len(rep.Timeline))
	for _, ev := range rep.Timeline {
		rows = append(rows, []string{fmt.Sprintf("%.2f s", ev.TimestampSec), ev.Frame, ev.Event})
	}
	d.table([]float64{25, 40, 115}, []string{"Time", "Frame", "Event"}, rows)

	if len(rep.LicensePlates) > 0 {
		d.heading("Licence plates")
		rows := make([][]string, 0, len(rep.LicensePlates))
		for _, p := range rep.LicensePlates {
			rows = append(rows, []string{p.Plate, fmt.Sprintf("%.2f", p.Confidence), fmt.Sprintf("%.2f s", p.TimestampSec), p.Frame})
		}
		d.table([]float64{50, 30, 30, 50}, []string{"Plate", "Confidence", "Time", "Frame"}, rows)
	}

	d.heading("Reconstruction")
	d.paragraph(rep.Narrative.Reconstruction)

	c := rep.ChainOfCustody
	d.heading("Chain of custody")
	d.field("Handled by", c.HandledBy)
	d.field("Recorded", c.Timestamp.UTC().Format(time.RFC3339))
	d.field("Video "+c.Integrity.Algorithm, c.FileHash)
	d.field("Frames hashed", fmt.Sprint(c.Evidence.FramesHashed))
	if len(c.FrameHashes) > 0 {
		d.pdf.Ln(1)
		rows := make([][]string, 0, len(c.FrameHashes))
		for _, fh := range c.FrameHashes {
			rows = append(rows, []string{fh.Frame, abbreviate(fh.SHA256)})
		}
		d.table([]float64{45, 135}, []string{"Frame", c.Integrity.Algorithm}, rows)
	}

	return d.output(w)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// abbreviate keeps long digests inside a table cell.
func abbreviate(s string) string {
	const maxLen = 64
	if len(s) <= maxLen {
		return s
	}
	return strings.TrimSpace(s[:maxLen-3]) + "..."
}
