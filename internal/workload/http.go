// Package workload provides operation executors that workers pace against.
package workload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"github.com/loadshape/loadshape/internal/config"
)

// HTTPOperation issues a single HTTP request per Execute call.
//
// It is shared by all workers, so the client's transport handles connection
// pooling across them. A non-2xx/3xx status, a failed body check, or a
// schema violation is reported as an operation failure.
type HTTPOperation struct {
	client  *http.Client
	method  string
	url     string
	headers map[string]string
	body    string

	checkPath   string
	checkEquals string
	schema      *jsonschema.Schema
}

// NewHTTPOperation builds the operation from the target configuration,
// compiling the response schema up front if one is configured.
func NewHTTPOperation(target config.TargetConfig) (*HTTPOperation, error) {
	op := &HTTPOperation{
		client: &http.Client{
			Timeout: target.Timeout.GetDuration(30 * time.Second),
			Transport: &http.Transport{
				MaxIdleConns:        1000,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		method:  target.Method,
		url:     target.URL,
		headers: target.Headers,
		body:    target.Body,
	}

	if target.Check != nil {
		op.checkPath = target.Check.Path
		op.checkEquals = target.Check.Equals

		if target.Check.SchemaFile != "" {
			schema, err := compileSchemaFile(target.Check.SchemaFile)
			if err != nil {
				return nil, err
			}
			op.schema = schema
		}
	}

	return op, nil
}

func compileSchemaFile(path string) (*jsonschema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(path, strings.NewReader(string(data))); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	schema, err := compiler.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return schema, nil
}

// Execute implements load.Operation.
func (o *HTTPOperation) Execute(ctx context.Context) error {
	var bodyReader io.Reader
	if o.body != "" {
		bodyReader = strings.NewReader(o.body)
	}

	req, err := http.NewRequestWithContext(ctx, o.method, o.url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for key, value := range o.headers {
		req.Header.Set(key, value)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return o.checkBody(body)
}

// checkBody applies the configured gjson and schema checks.
func (o *HTTPOperation) checkBody(body []byte) error {
	if o.checkPath != "" {
		result := gjson.GetBytes(body, o.checkPath)
		if !result.Exists() {
			return fmt.Errorf("check path %q not found in response", o.checkPath)
		}
		if o.checkEquals != "" && result.String() != o.checkEquals {
			return fmt.Errorf("check path %q = %q, want %q", o.checkPath, result.String(), o.checkEquals)
		}
	}

	if o.schema != nil {
		var doc interface{}
		if err := json.Unmarshal(body, &doc); err != nil {
			return fmt.Errorf("response is not valid JSON: %w", err)
		}
		if err := o.schema.Validate(doc); err != nil {
			return fmt.Errorf("response failed schema validation: %w", err)
		}
	}

	return nil
}
