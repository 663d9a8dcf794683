package converter

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/disintegration/imaging"
)

const defaultQemuImg = "qemu-img"

// rasterFormats are the target formats converted in-process. Everything
// else is treated as a disk-image format and handed to qemu-img.
var rasterFormats = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"tif":  true,
	"tiff": true,
	"bmp":  true,
}

// Converter transcodes a local image file into a requested target
// format. Raster formats go through the imaging library; disk-image
// formats (qcow2, raw, vmdk, ...) shell out to qemu-img.
type Converter struct {
	qemuImg string
}

// New creates a Converter. An empty qemuImgPath resolves the binary
// from PATH.
func New(qemuImgPath string) *Converter {
	if qemuImgPath == "" {
		qemuImgPath = defaultQemuImg
	}

	return &Converter{qemuImg: qemuImgPath}
}

// Convert transcodes the file at sourcePath into format and returns the
// path of the converted file, <sourcePath>.<format>. A failed
// invocation returns an error carrying the tool output.
func (c *Converter) Convert(ctx context.Context, sourcePath, format string) (string, error) {
	if format == "" {
		return "", fmt.Errorf("convert: target format is empty")
	}

	targetPath := fmt.Sprintf("%s.%s", sourcePath, format)

	if rasterFormats[format] {
		if err := c.convertRaster(sourcePath, targetPath); err != nil {
			return "", err
		}
		return targetPath, nil
	}

	if err := c.convertDiskImage(ctx, sourcePath, targetPath, format); err != nil {
		return "", err
	}

	return targetPath, nil
}

func (c *Converter) convertRaster(sourcePath, targetPath string) error {
	img, err := imaging.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("convert: failed to decode source image: %w", err)
	}

	if err := imaging.Save(img, targetPath); err != nil {
		return fmt.Errorf("convert: failed to encode target image: %w", err)
	}

	return nil
}

func (c *Converter) convertDiskImage(ctx context.Context, sourcePath, targetPath, format string) error {
	cmd := exec.CommandContext(ctx, c.qemuImg, "convert", "-O", format, sourcePath, targetPath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("convert: %s failed: %w: %s", c.qemuImg, err, output)
	}

	return nil
}
