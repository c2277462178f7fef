// package formatter exports albums to various formats (CSV, Markdown, plain text) alongside their photos
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/visionary/internal/models"
	"github.com/desertthunder/visionary/internal/shared"
)

// Format selects the manifest written by [WriteAlbumExport].
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat accepts csv, markdown (or md) and text (or txt).
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

func (f Format) manifest() string {
	switch f {
	case FormatMarkdown:
		return "README.md"
	case FormatText:
		return "album.txt"
	default:
		return "album.csv"
	}
}

// ExportToCSV converts an album's classifications to CSV with columns: id, label, confidence, timestamp, has_image
func ExportToCSV(album *models.Album) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"id", "label", "confidence", "timestamp", "has_image"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, c := range album.Classifications() {
		record := []string{
			c.ID(),
			c.Label(),
			strconv.FormatFloat(c.Confidence(), 'f', -1, 64),
			c.Timestamp().UTC().Format(time.RFC3339Nano),
			strconv.FormatBool(c.HasImage()),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts an album to Markdown. Photos listed in images are embedded by file name.
func ExportToMarkdown(album *models.Album, images map[string]string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", album.Name())
	fmt.Fprintf(&buf, "**Photos**: %d\n", len(album.Classifications()))
	fmt.Fprintf(&buf, "**Created**: %s\n\n", album.CreatedAt().UTC().Format(time.RFC3339))

	buf.WriteString("## Photos\n\n")
	for i, c := range album.Classifications() {
		fmt.Fprintf(&buf, "%d. %s %s (%s)\n", i+1, c.Label(), shared.FormatConfidence(c.Confidence()), c.Timestamp().UTC().Format(time.RFC3339))
		if name, ok := images[c.ID()]; ok {
			fmt.Fprintf(&buf, "\n   ![%s](%s)\n\n", c.ID(), name)
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts an album to plain text format
func ExportToText(album *models.Album) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Album: %s\n", album.Name())
	fmt.Fprintf(&buf, "Photos: %d\n\n", len(album.Classifications()))

	for i, c := range album.Classifications() {
		fmt.Fprintf(&buf, "%d. %s %s %s %s\n", i+1, c.ID(), c.Label(), shared.FormatConfidence(c.Confidence()), c.Timestamp().UTC().Format(time.RFC3339))
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of the album and its classifications (without image bytes)
func ToMetadataJSON(album *models.Album) ([]byte, error) {
	return shared.MarshalJSON(album, true)
}

// ImageExtension picks a file extension from the stored bytes, defaulting to .jpg.
func ImageExtension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// ExportResult contains the paths of files created by [WriteAlbumExport]
type ExportResult struct {
	Directory    string   `json:"directory"`
	Manifest     string   `json:"manifest"`
	MetadataFile string   `json:"metadata"`
	Images       []string `json:"images"`
}

// WriteAlbumExport writes an album loaded with its classifications into outputDir.
//
// The directory defaults to the album ID and receives the manifest, metadata.json and one {id}.jpg
// per stored photo. Photos without image bytes appear only in the manifest.
func WriteAlbumExport(album *models.Album, outputDir string, format Format) (*ExportResult, error) {
	if outputDir == "" {
		outputDir = album.ID()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ExportResult{Directory: outputDir, Images: []string{}}

	images := make(map[string]string)
	for _, c := range album.Classifications() {
		if !c.HasImage() {
			continue
		}
		name := c.ID() + ImageExtension(c.Image())
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, c.Image(), 0644); err != nil {
			return nil, fmt.Errorf("failed to write image %s: %w", name, err)
		}
		images[c.ID()] = name
		result.Images = append(result.Images, path)
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatMarkdown:
		data, err = ExportToMarkdown(album, images)
	case FormatText:
		data, err = ExportToText(album)
	default:
		data, err = ExportToCSV(album)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate manifest: %w", err)
	}

	result.Manifest = filepath.Join(outputDir, format.manifest())
	if err := os.WriteFile(result.Manifest, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	metadata, err := ToMetadataJSON(album)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	result.MetadataFile = filepath.Join(outputDir, "metadata.json")
	if err := os.WriteFile(result.MetadataFile, metadata, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return result, nil
}
