// Package unpack extracts every file embedded in a loaded IMAGEWTY
// container to an output directory and synthesizes a buildable
// image.cfg describing what was extracted.
package unpack

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/openixwty/imagewty/internal/archiveutil"
	"github.com/openixwty/imagewty/internal/dragonex"
	ierrors "github.com/openixwty/imagewty/internal/errors"
	"github.com/openixwty/imagewty/internal/imagewty"
	"github.com/openixwty/imagewty/internal/logger"
	"github.com/openixwty/imagewty/internal/utils/fsutil"
)

// Format selects the on-disk layout of the extracted tree.
type Format int

const (
	// FormatUnimg writes flat maintype_subtype payload/header pairs,
	// the layout the unimg tool produces.
	FormatUnimg Format = iota
	// FormatImgrepacker preserves the embedded filenames, including
	// their directory structure, the layout imgrepacker produces.
	FormatImgrepacker
)

func (f Format) String() string {
	switch f {
	case FormatUnimg:
		return "unimg"
	case FormatImgrepacker:
		return "imgrepacker"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat maps a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "unimg":
		return FormatUnimg, nil
	case "imgrepacker":
		return FormatImgrepacker, nil
	default:
		return FormatUnimg, fmt.Errorf("%w: %q", ierrors.ErrUnsupportedFormat, s)
	}
}

// Options configures one unpack run.
type Options struct {
	OutDir  string
	Format  Format
	Archive string // optional: tar.gz, tar.bz2, or tar.xz the output tree afterwards
}

// Run extracts every embedded file to opts.OutDir and writes image.cfg.
// The output directory is recreated from scratch. A single file's write
// failure is logged and does not stop the remaining files; the overall
// result reflects whether every file succeeded.
func Run(c *imagewty.Container, opts Options) error {
	if opts.OutDir == "" {
		return fmt.Errorf("%w: output directory is required", ierrors.ErrInvalidArgument)
	}
	if err := fsutil.RecreateDir(opts.OutDir); err != nil {
		return fmt.Errorf("%w: recreating %s: %v", ierrors.ErrFileWriteError, opts.OutDir, err)
	}

	fileList := &dragonex.Group{Name: "FILELIST"}
	allOK := true
	for _, entry := range c.Entries {
		cfgName, err := writeEntry(c, entry, opts)
		if err != nil {
			logger.LogError("failed to extract file", err, map[string]interface{}{
				"filename": entry.Header.Filename(),
			})
			allOK = false
			continue
		}

		item := &dragonex.Variable{Kind: dragonex.KindList}
		item.Items = append(item.Items,
			&dragonex.Variable{Name: "filename", Kind: dragonex.KindString, Str: cfgName},
			&dragonex.Variable{Name: "maintype", Kind: dragonex.KindString, Str: entry.Header.MainTypeString()},
			&dragonex.Variable{Name: "subtype", Kind: dragonex.KindString, Str: entry.Header.SubTypeString()},
		)
		fileList.AddVariable(item)
	}

	if err := writeImageCfg(c, fileList, opts.OutDir); err != nil {
		return err
	}

	if opts.Archive != "" {
		archivePath := opts.OutDir + "." + opts.Archive
		if err := archiveutil.CompressDir(opts.OutDir, archivePath, opts.Archive); err != nil {
			return fmt.Errorf("archiving unpacked tree: %w", err)
		}
		logger.LogInfo("archived unpacked tree", map[string]interface{}{
			"archive": archivePath,
		})
	}

	if !allOK {
		return fmt.Errorf("%w: one or more files failed to extract", ierrors.ErrFileWriteError)
	}

	logger.LogInfo("unpacked image", map[string]interface{}{
		"output": opts.OutDir,
		"format": opts.Format.String(),
		"files":  len(c.Entries),
	})
	return nil
}

// writeEntry extracts one embedded file and returns the filename to
// record for it in image.cfg's FILELIST.
func writeEntry(c *imagewty.Container, entry imagewty.FileEntry, opts Options) (string, error) {
	data, err := c.Data(entry)
	if err != nil {
		return "", err
	}

	switch opts.Format {
	case FormatImgrepacker:
		name := strings.TrimPrefix(entry.Header.Filename(), "/")
		clean := filepath.Clean(filepath.FromSlash(name))
		if clean == "." || strings.HasPrefix(clean, "..") {
			return "", fmt.Errorf("%w: embedded filename %q escapes the output directory", ierrors.ErrInvalidArgument, name)
		}
		if err := fsutil.WriteFileInDir(opts.OutDir, clean, data, 0o644); err != nil {
			return "", err
		}
		return name, nil

	default: // FormatUnimg
		base := entry.Header.MainTypeString() + "_" + entry.Header.SubTypeString()

		rawHeader, err := c.RawHeader(entry)
		if err != nil {
			return "", err
		}
		if err := fsutil.WriteFile(filepath.Join(opts.OutDir, base+".hdr"), rawHeader, 0o644); err != nil {
			return "", err
		}
		if err := fsutil.WriteFile(filepath.Join(opts.OutDir, base), data, 0o644); err != nil {
			return "", err
		}
		return base, nil
	}
}

// writeImageCfg synthesizes the DIR_DEF / FILELIST / IMAGE_CFG document
// describing the unpacked tree and writes it as image.cfg.
func writeImageCfg(c *imagewty.Container, fileList *dragonex.Group, outDir string) error {
	doc := dragonex.NewDocument()

	dirDef := &dragonex.Group{Name: "DIR_DEF"}
	dirDef.AddVariable(&dragonex.Variable{Name: "INPUT_DIR", Kind: dragonex.KindString, Str: "../"})
	doc.AddGroup(dirDef)

	doc.AddGroup(fileList)

	imageCfg := &dragonex.Group{Name: "IMAGE_CFG"}
	imageCfg.AddVariable(&dragonex.Variable{Name: "version", Kind: dragonex.KindNumber, Number: c.Header.FormatVersion})
	imageCfg.AddVariable(&dragonex.Variable{Name: "pid", Kind: dragonex.KindNumber, Number: c.Header.PID()})
	imageCfg.AddVariable(&dragonex.Variable{Name: "vid", Kind: dragonex.KindNumber, Number: c.Header.VID()})
	imageCfg.AddVariable(&dragonex.Variable{Name: "hardwareid", Kind: dragonex.KindNumber, Number: c.Header.HardwareID()})
	imageCfg.AddVariable(&dragonex.Variable{Name: "firmwareid", Kind: dragonex.KindNumber, Number: c.Header.FirmwareID()})
	imageCfg.AddVariable(&dragonex.Variable{Name: "imagename", Kind: dragonex.KindReference, Ref: c.SourcePath})
	imageCfg.AddVariable(&dragonex.Variable{Name: "filelist", Kind: dragonex.KindReference, Ref: "FILELIST"})
	encrypt := "0"
	if c.WasEncrypted {
		encrypt = "1"
	}
	imageCfg.AddVariable(&dragonex.Variable{Name: "encrypt", Kind: dragonex.KindReference, Ref: encrypt})
	doc.AddGroup(imageCfg)

	var sb strings.Builder
	sb.WriteString(";/**************************************************************************/\n")
	sb.WriteString("; " + time.Now().Format("2006-01-02 15:04:05") + "\n")
	sb.WriteString("; generated by imagewty\n")
	sb.WriteString("; " + c.SourcePath + "\n")
	sb.WriteString(";/**************************************************************************/\n")
	sb.WriteString(doc.Serialize())

	cfgPath := filepath.Join(outDir, "image.cfg")
	if err := fsutil.WriteFile(cfgPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ierrors.ErrFileWriteError, cfgPath, err)
	}
	return nil
}
