package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// QRCodeToolName 二维码工具名称
const QRCodeToolName = "generate_qr_code"

const qrCodeDescription = "Generate a QR code for text, URL, or other data. Returns an image URL that can be shown to the user."

// QRCodeParams 二维码工具参数
type QRCodeParams struct {
	Data       string `json:"data" jsonschema:"description=The data to encode in the QR code (URL or text etc.)"`
	Size       int    `json:"size,omitempty" jsonschema:"description=Size of the QR code in pixels. Default is 200."`
	Format     string `json:"format,omitempty" jsonschema:"description=Image format. Default is png.,enum=png,enum=svg"`
	ErrorLevel string `json:"errorLevel,omitempty" jsonschema:"description=Error correction level. Default is M.,enum=L,enum=M,enum=Q,enum=H"`
}

// QRCodeResult 二维码工具结果
type QRCodeResult struct {
	Success   bool   `json:"success"`
	Data      string `json:"data"`
	Format    string `json:"format"`
	Size      int    `json:"size"`
	ImageURL  string `json:"imageUrl"`
	Markdown  string `json:"markdown"`
	Timestamp string `json:"timestamp"`
}

const (
	defaultQRSize = 200
	maxQRSize     = 1000
)

// qrCodeGenerator 生成二维码图片地址
type qrCodeGenerator struct {
	baseURL string
}

func (g *qrCodeGenerator) generate(ctx context.Context, params QRCodeParams) (any, error) {
	if strings.TrimSpace(params.Data) == "" {
		return failure("data is required"), nil
	}

	size := params.Size
	if size <= 0 {
		size = defaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}

	format := strings.ToLower(params.Format)
	if format != "svg" {
		format = "png"
	}

	level := strings.ToUpper(params.ErrorLevel)
	if !strings.Contains("LMQH", level) || len(level) != 1 {
		level = "M"
	}

	q := url.Values{}
	q.Set("data", params.Data)
	q.Set("size", fmt.Sprintf("%dx%d", size, size))
	q.Set("format", format)
	q.Set("ecc", level)
	q.Set("margin", "1")
	imageURL := g.baseURL + "?" + q.Encode()

	return QRCodeResult{
		Success:   true,
		Data:      params.Data,
		Format:    format,
		Size:      size,
		ImageURL:  imageURL,
		Markdown:  fmt.Sprintf("![QR code](%s)", imageURL),
		Timestamp: now(),
	}, nil
}
