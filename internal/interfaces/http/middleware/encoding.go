package middleware

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// maxNormalizedBody 超过该大小的请求体不做转码
const maxNormalizedBody = 1 << 20

// EnsureUTF8Body 将 GBK 编码的 JSON 请求体转为 UTF-8
// Windows 下的 curl 会以本地代码页发送中文消息；上传的二进制文件不处理
func EnsureUTF8Body() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !shouldNormalize(c) {
			c.Next()
			return
		}

		bodyBytes, err := io.ReadAll(c.Request.Body)
		c.Request.Body.Close()
		if err != nil {
			c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			c.Next()
			return
		}

		if utf8.Valid(bodyBytes) {
			c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			c.Next()
			return
		}

		converted, err := convertGBKToUTF8(bodyBytes)
		if err != nil || !utf8.Valid(converted) {
			c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			c.Next()
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(converted))
		c.Request.ContentLength = int64(len(converted))
		c.Next()
	}
}

func shouldNormalize(c *gin.Context) bool {
	req := c.Request
	if req.Body == nil || req.ContentLength == 0 || req.ContentLength > maxNormalizedBody {
		return false
	}
	contentType := strings.ToLower(req.Header.Get("Content-Type"))
	return strings.HasPrefix(contentType, "application/json") || strings.HasPrefix(contentType, "text/plain")
}

// convertGBKToUTF8 将 GBK 编码的字节转换为 UTF-8
func convertGBKToUTF8(gbkBytes []byte) ([]byte, error) {
	reader := transform.NewReader(bytes.NewReader(gbkBytes), simplifiedchinese.GBK.NewDecoder())
	return io.ReadAll(reader)
}
