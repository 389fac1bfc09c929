// Copyright (c) 2014-2017 Cesanta Software Limited
// All rights reserved

package common

import (
	"strings"

	"github.com/juju/errors"

	"github.com/plant-monitor/espflash/common/nvs"
)

func ParseParamValues(args []string) (map[string]string, error) {
	ret := map[string]string{}
	for _, a := range args {
		// Split arg into two substring by "=" (so, param name name cannot contain
		// "=", but value can)
		subs := strings.SplitN(a, "=", 2)
		if len(subs) < 2 {
			return nil, errors.Errorf("missing value for %q", a)
		}
		ret[subs[0]] = subs[1]
	}
	return ret, nil
}

func ParseParamValuesTyped(args []string) (map[string]interface{}, error) {
	var res map[string]interface{}
	params, err := ParseParamValues(args)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for p, valueStr := range params {
		var value interface{}
		switch valueStr {
		case "true":
			value = true
		case "false":
			value = false
		default:
			value = nvs.ParseValue(valueStr)
		}
		if res == nil {
			res = make(map[string]interface{})
		}
		res[p] = value
	}
	return res, nil
}

// ParseNVSValues turns "namespace.key=value" arguments into NVS config.
// Keys without a namespace go to defaultNS.
func ParseNVSValues(args []string, defaultNS string) (nvs.Config, error) {
	params, err := ParseParamValuesTyped(args)
	if err != nil {
		return nil, errors.Trace(err)
	}
	cfg := nvs.Config{}
	for p, v := range params {
		ns, key := defaultNS, p
		if i := strings.IndexByte(p, '.'); i >= 0 {
			ns, key = p[:i], p[i+1:]
		}
		if ns == "" || key == "" {
			return nil, errors.Errorf("invalid NVS key %q", p)
		}
		cfg.Set(ns, key, v)
	}
	return cfg, nil
}
