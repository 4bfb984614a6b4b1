package nhtsa

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	carMakesKey = "car"
	allMakesKey = "all"
)

type makesResponse struct {
	Results []struct {
		MakeName  string `json:"MakeName"`
		MakeNameA string `json:"Make_Name"`
	} `json:"Results"`
}

// ValidateYearMake checks vehicleMake case-insensitively against the
// passenger-car make list and then the full make list.
func (c *Client) ValidateYearMake(ctx context.Context, year int, vehicleMake string) Verdict {
	want := strings.ToUpper(strings.TrimSpace(vehicleMake))

	for _, key := range []string{carMakesKey, allMakesKey} {
		names, err := c.makeNames(ctx, key)
		if err != nil {
			return c.degrade(c.cfg.MakePolicy, "make", err)
		}
		if _, ok := names[want]; ok {
			return Verdict{Valid: true, Make: vehicleMake, Year: year}
		}
	}

	c.logger.Debug("make not found", "make", vehicleMake, "year", year)
	return Verdict{Reason: fmt.Sprintf("'%s' doesn't appear to be a valid vehicle make. Please check the spelling.", vehicleMake)}
}

// makeNames returns the cached upper-cased make set for key, refreshing it
// after MakesTTL. Concurrent refreshes share one request.
func (c *Client) makeNames(ctx context.Context, key string) (map[string]struct{}, error) {
	c.mu.Lock()
	cached, ok := c.makes[key]
	c.mu.Unlock()
	if ok && time.Since(cached.fetchedAt) < c.cfg.MakesTTL {
		return cached.names, nil
	}

	ch := c.flights.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()
		names, err := c.fetchMakes(fetchCtx, key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.makes[key] = makeList{names: names, fetchedAt: time.Now()}
		c.mu.Unlock()
		return names, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]struct{}), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) fetchMakes(ctx context.Context, key string) (map[string]struct{}, error) {
	endpoint := c.cfg.BaseURL + "/GetAllMakes?format=json"
	if key == carMakesKey {
		endpoint = c.cfg.BaseURL + "/GetMakesForVehicleType/car?format=json"
	}

	var body makesResponse
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(body.Results))
	for _, r := range body.Results {
		name := r.MakeName
		if name == "" {
			name = r.MakeNameA
		}
		if name = strings.ToUpper(strings.TrimSpace(name)); name != "" {
			names[name] = struct{}{}
		}
	}
	return names, nil
}
