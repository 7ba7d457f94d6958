package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration 仿真时长，JSON 中写作 "10ms" 或纳秒整数
//
//	{"simulation": {"tick_interval": "1ms", "run_for": "2s"}}
type Duration time.Duration

// UnmarshalJSON 解析字符串或纳秒整数，拒绝负值
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v time.Duration

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err = time.ParseDuration(s); err != nil {
			return fmt.Errorf("duration %q: %w", s, err)
		}
	} else if err := json.Unmarshal(data, (*int64)(&v)); err != nil {
		return fmt.Errorf("duration must be a string like \"10ms\" or an integer of nanoseconds, got %s", data)
	}

	if v < 0 {
		return fmt.Errorf("duration %s must not be negative", v)
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON 输出 "10ms" 形式
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Duration 底层 time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// check 校验字段取值；positive 为 true 时零值也无效
func (d Duration) check(field string, positive bool) error {
	switch {
	case d < 0:
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidTopology, field)
	case positive && d == 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalidTopology, field)
	}
	return nil
}
