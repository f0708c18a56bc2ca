package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gin-gonic/gin/codec/json"
)

const jsonBodyKey = "userauth.json_body"

// ErrNoJSONBody is returned by BindJSON when the request carried no JSON body.
var ErrNoJSONBody = errors.New("request has no JSON body")

// JSONBody parses application/json request bodies before any route runs.
//
// An empty JSON body parses as {}. The top-level value must be an object or an
// array. Bodies larger than limit bytes are rejected with 413. Requests with
// another content type pass through unparsed.
func JSONBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.EqualFold(c.ContentType(), binding.MIMEJSON) {
			c.Next()
			return
		}

		raw, err := readBody(c, limit)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload_too_large"})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
			return
		}

		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			raw = []byte("{}")
		}
		var parsed any
		if (raw[0] != '{' && raw[0] != '[') || json.API.Unmarshal(raw, &parsed) != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}

		c.Set(jsonBodyKey, raw)
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		c.Next()
	}
}

func readBody(c *gin.Context, limit int64) ([]byte, error) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil, nil
	}
	body := c.Request.Body
	if limit > 0 {
		body = http.MaxBytesReader(c.Writer, body, limit)
	}
	return io.ReadAll(body)
}

// Body returns the parsed request body, if JSONBody parsed one.
func Body(c *gin.Context) ([]byte, bool) {
	v, ok := c.Get(jsonBodyKey)
	if !ok {
		return nil, false
	}
	raw, ok := v.([]byte)
	return raw, ok
}

// BindJSON decodes the parsed body into obj and runs gin's binding validation.
func BindJSON(c *gin.Context, obj any) error {
	raw, ok := Body(c)
	if !ok {
		return ErrNoJSONBody
	}
	if err := json.API.Unmarshal(raw, obj); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if binding.Validator == nil {
		return nil
	}
	return binding.Validator.ValidateStruct(obj)
}
