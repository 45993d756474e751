package cloudkv

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"hotboard/core"
)

// number accepts both JSON numbers and numeric strings; the services
// return integers bare and sorted-set scores as strings.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	b = bytes.Trim(b, `"`)
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = number(f)
	return nil
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
func formatInt(i int64) string     { return strconv.FormatInt(i, 10) }

func (c *Client) RangeByRank(ctx context.Context, key string, start, stop int64, opts core.RangeOptions) ([]core.RankedEntry, error) {
	args := []string{"ZRANGE", key, formatInt(start), formatInt(stop)}
	if opts.Reverse {
		args = append(args, "REV")
	}
	if opts.WithScores {
		args = append(args, "WITHSCORES")
	}
	var flat []string
	if err := c.do(ctx, "zrange", key, &flat, args...); err != nil {
		return nil, err
	}

	if !opts.WithScores {
		out := make([]core.RankedEntry, len(flat))
		for i, m := range flat {
			out[i] = core.RankedEntry{Member: m}
		}
		return out, nil
	}
	out := make([]core.RankedEntry, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		score, err := strconv.ParseFloat(flat[i+1], 64)
		if err != nil {
			return nil, core.NewOpError(kind, "zrange", key, core.ErrBackendUnavailable, err)
		}
		out = append(out, core.RankedEntry{Member: flat[i], Score: score})
	}
	return out, nil
}

func (c *Client) IncrementScore(ctx context.Context, key string, delta float64, member string) (float64, error) {
	var score number
	if err := c.do(ctx, "zincrby", key, &score, "ZINCRBY", key, formatFloat(delta), member); err != nil {
		return 0, err
	}
	return float64(score), nil
}

func (c *Client) Cardinality(ctx context.Context, key string) (int64, error) {
	var n number
	if err := c.do(ctx, "zcard", key, &n, "ZCARD", key); err != nil {
		return 0, err
	}
	return int64(n), nil
}

func (c *Client) RemoveByRankRange(ctx context.Context, key string, start, stop int64) (int64, error) {
	var n number
	if err := c.do(ctx, "zremrangebyrank", key, &n, "ZREMRANGEBYRANK", key, formatInt(start), formatInt(stop)); err != nil {
		return 0, err
	}
	return int64(n), nil
}

func (c *Client) RemoveMember(ctx context.Context, key string, member string) (int64, error) {
	var n number
	if err := c.do(ctx, "zrem", key, &n, "ZREM", key, member); err != nil {
		return 0, err
	}
	return int64(n), nil
}

// MultiScore uses ZMSCORE. Services without it answer "unknown command",
// which surfaces as core.ErrDegradedCapability.
func (c *Client) MultiScore(ctx context.Context, key string, members []string) ([]*float64, error) {
	out := make([]*float64, len(members))
	if len(members) == 0 {
		return out, nil
	}
	var raw []*number
	if err := c.do(ctx, "zmscore", key, &raw, append([]string{"ZMSCORE", key}, members...)...); err != nil {
		return nil, err
	}
	for i := range out {
		if i < len(raw) && raw[i] != nil {
			f := float64(*raw[i])
			out[i] = &f
		}
	}
	return out, nil
}

// ScanKeys follows the SCAN cursor until the service reports 0.
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	seen := map[string]struct{}{}
	cursor := "0"
	for {
		var page []json.RawMessage
		if err := c.do(ctx, "scan", pattern, &page, "SCAN", cursor, "MATCH", pattern, "COUNT", "100"); err != nil {
			return nil, err
		}
		if len(page) != 2 {
			return nil, core.NewOpError(kind, "scan", pattern, core.ErrBackendUnavailable, errMalformedScan)
		}
		var keys []string
		if err := json.Unmarshal(page[1], &keys); err != nil {
			return nil, core.NewOpError(kind, "scan", pattern, core.ErrBackendUnavailable, err)
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		// cursors may exceed float precision; keep them textual
		cursor = string(bytes.Trim(page[0], `"`))
		if cursor == "0" || cursor == "" {
			break
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *Client) GetScalar(ctx context.Context, key string) (string, bool, error) {
	var v *string
	if err := c.do(ctx, "get", key, &v, "GET", key); err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (c *Client) IncrementScalar(ctx context.Context, key string, delta int64) (int64, error) {
	var n number
	if err := c.do(ctx, "incrby", key, &n, "INCRBY", key, formatInt(delta)); err != nil {
		return 0, err
	}
	return int64(n), nil
}

func (c *Client) DeleteKey(ctx context.Context, key string) error {
	return c.do(ctx, "del", key, nil, "DEL", key)
}
