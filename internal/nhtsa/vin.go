package nhtsa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Error codes the decoder reports for VINs that still decode usefully.
var softErrorCodes = map[string]struct{}{"0": {}, "1": {}, "6": {}}

type decodeResponse struct {
	Results []struct {
		Variable string `json:"Variable"`
		Value    string `json:"Value"`
	} `json:"Results"`
}

// DecodeVIN decodes vin. A VIN is rejected when the decoder reports a hard
// error code or no make could be decoded.
func (c *Client) DecodeVIN(ctx context.Context, vin string) Verdict {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/DecodeVin/%s?format=json", c.cfg.BaseURL, url.PathEscape(vin))
	var body decodeResponse
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return c.degrade(c.cfg.VINPolicy, "VIN", err)
	}

	var v Verdict
	var errorCode string
	for _, item := range body.Results {
		value := strings.TrimSpace(item.Value)
		switch item.Variable {
		case "Error Code":
			errorCode = value
		case "Make":
			v.Make = value
		case "Model":
			v.Model = value
		case "Model Year":
			if y, err := strconv.Atoi(value); err == nil {
				v.Year = y
			}
		case "Body Class":
			v.BodyClass = value
		}
	}

	if hardError(errorCode) {
		c.logger.Debug("VIN rejected by decoder", "vin", vin, "error_code", errorCode)
		return Verdict{Reason: "Invalid VIN. Please check and try again."}
	}
	if v.Make == "" {
		return Verdict{Reason: "Could not decode VIN. Please verify it's correct."}
	}
	v.Valid = true
	return v
}

// hardError reports whether any code in a comma-separated code list is
// outside the soft set.
func hardError(codes string) bool {
	if codes == "" {
		return false
	}
	for _, code := range strings.Split(codes, ",") {
		if _, ok := softErrorCodes[strings.TrimSpace(code)]; !ok {
			return true
		}
	}
	return false
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close vPIC response body", "error", closeErr)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vPIC returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
