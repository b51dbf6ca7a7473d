package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/zvukmeta/tagscan"
	"github.com/zvukmeta/tagscan/internal/config"
	"github.com/zvukmeta/tagscan/internal/constants"
	"github.com/zvukmeta/tagscan/internal/logger"
	"github.com/zvukmeta/tagscan/internal/utils"
)

// csvColumns is the fixed column order for the csv/tsv/tabularcsv shapes.
var csvColumns = []string{
	"filename", "filesize", "duration", "bitrate", "channels", "samplerate",
	"bitdepth", "artist", "albumartist", "composer", "album", "title",
	"genre", "comment", "year", "disc", "disc_total", "track", "track_total",
}

// runScan drives the dispatcher once per input file, shapes results per
// cfg.OutputFormat, optionally saves the first available image per file,
// and reports a multi-file progress bar to stderr. It returns a non-nil
// error (causing exit code 1) when any file failed to parse and was not
// skipped via SkipUnsupported, or when writing the output failed.
func runScan(ctx context.Context, cfg *config.Config, files []string) error {
	opts := tagscan.DefaultOptions()
	opts.MP3EstimationSeconds = cfg.MP3EstimationSeconds
	opts.Image = cfg.SaveImagePathTemplate != ""

	bar := newScanProgressBar(cfg, len(files))
	defer bar.Close() //nolint:errcheck // best-effort UI cleanup

	csvW, tsvHeaderWritten := newDelimitedWriter(cfg.OutputFormat)

	var (
		failed     bool
		imageCount int
	)

	for _, path := range files {
		tag, err := tagscan.Get(path, opts)

		_ = bar.Add(1)

		if err != nil {
			if cfg.SkipUnsupported && errors.Is(err, tagscan.ErrUnsupportedFormat) {
				logger.Warnf(ctx, "%s: %v", path, err)

				continue
			}

			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)

			failed = true

			continue
		}

		logger.Debugf(ctx, "%s: parsed %s, duration %.3fs", path, humanize.Bytes(uint64(tag.Filesize)), tag.Duration)

		if cfg.SaveImagePathTemplate != "" {
			if img := tag.Images.Any(); img != nil {
				if err := saveImage(cfg.SaveImagePathTemplate, imageCount, len(files) > 1, img); err != nil {
					fmt.Fprintf(os.Stderr, "%s: failed to save image: %v\n", path, err)
				} else {
					imageCount++
				}
			}
		}

		if err := emitTag(cfg.OutputFormat, tag, csvW, &tsvHeaderWritten); err != nil {
			fmt.Fprintf(os.Stderr, "%s: failed to write output: %v\n", path, err)

			failed = true
		}
	}

	if csvW != nil {
		csvW.Flush()
	}

	if failed {
		return fmt.Errorf("one or more inputs failed to parse")
	}

	return nil
}

func newScanProgressBar(cfg *config.Config, total int) *progressbar.ProgressBar {
	if total <= 1 || cfg.OutputFormat == "tabularcsv" || cfg.OutputFormat == "json" {
		return progressbar.DefaultBytesSilent(int64(total))
	}

	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("scanning"),
		progressbar.OptionShowCount(),
	)
}

func newDelimitedWriter(format string) (*csv.Writer, bool) {
	switch format {
	case "csv", "tsv", "tabularcsv":
		w := csv.NewWriter(os.Stdout)
		if format == "tsv" {
			w.Comma = '\t'
		}

		return w, false
	default:
		return nil, false
	}
}

func emitTag(format string, tag *tagscan.Tag, w *csv.Writer, tabularHeaderWritten *bool) error {
	switch format {
	case "csv", "tsv":
		if err := w.Write(csvColumns); err != nil {
			return err
		}

		if err := w.Write(tagToRow(tag)); err != nil {
			return err
		}

		w.Flush()

		return w.Error()
	case "tabularcsv":
		if !*tabularHeaderWritten {
			if err := w.Write(csvColumns); err != nil {
				return err
			}

			*tabularHeaderWritten = true
		}

		if err := w.Write(tagToRow(tag)); err != nil {
			return err
		}

		w.Flush()

		return w.Error()
	default:
		enc := json.NewEncoder(os.Stdout)

		return enc.Encode(tag)
	}
}

func tagToRow(tag *tagscan.Tag) []string {
	return []string{
		tag.Filename,
		strconv.FormatInt(tag.Filesize, 10),
		strconv.FormatFloat(tag.Duration, 'f', 3, 64),
		strconv.FormatFloat(tag.Bitrate, 'f', 1, 64),
		strconv.Itoa(tag.Channels),
		strconv.Itoa(tag.SampleRate),
		strconv.Itoa(tag.BitDepth),
		tag.Artist,
		tag.AlbumArtist,
		tag.Composer,
		tag.Album,
		tag.Title,
		tag.Genre,
		tag.Comment,
		tag.Year,
		strconv.Itoa(tag.Disc),
		strconv.Itoa(tag.DiscTotal),
		strconv.Itoa(tag.Track),
		strconv.Itoa(tag.TrackTotal),
	}
}

// saveImage writes img's bytes to template. When multiple inputs are being
// scanned, the path is expanded to the sequential "PATH00000.ext" form; the
// counter only advances over inputs that actually produced an image.
func saveImage(template string, index int, numbered bool, img *tagscan.Image) error {
	dir, base := filepath.Split(template)
	base = utils.SanitizeFilename(base)

	path := dir + base
	if numbered {
		path = numberedImagePath(dir+base, index)
	}

	path = utils.SetFileExtension(path, extensionForMime(img.MimeType), false)

	return os.WriteFile(path, img.Data, constants.DefaultFilePermissions) //nolint:gosec // CLI writes where the caller pointed it.
}

func numberedImagePath(template string, index int) string {
	ext := ""

	if idx := strings.LastIndexByte(template, '.'); idx >= 0 {
		ext = template[idx:]
		template = template[:idx]
	}

	return fmt.Sprintf("%s%05d%s", template, index, ext)
}

func extensionForMime(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/bmp":
		return "bmp"
	default:
		return "jpg"
	}
}
