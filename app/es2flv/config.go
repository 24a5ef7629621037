// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/q191201771/lalflv/pkg/base"
	"github.com/q191201771/naza/pkg/nazajson"
	log "github.com/q191201771/naza/pkg/nazalog"
)

var ErrFrameRate = errors.New("es2flv: frame_rate should be positive")

type Config struct {
	// 输入为h264裸流时使用的帧率，ts输入时不使用
	FrameRate float64 `json:"frame_rate"`

	// 写入metadata的encoder字段
	Encoder string `json:"encoder"`

	// 为true时，metadata中的framerate字段由 FrameRate 决定，否则由实际帧数和时长计算
	WriteFrameRate bool `json:"write_frame_rate"`

	Log log.Option `json:"log"`
}

// LoadConf
//
// @param confFile: 为空时，所有配置使用默认值
func LoadConf(confFile string) (*Config, error) {
	rawContent := []byte("{}")
	if confFile != "" {
		var err error
		if rawContent, err = os.ReadFile(confFile); err != nil {
			return nil, err
		}
	}
	return LoadConfFromBytes(rawContent)
}

func LoadConfFromBytes(rawContent []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(rawContent, &config); err != nil {
		return nil, err
	}

	j, err := nazajson.New(rawContent)
	if err != nil {
		return nil, err
	}

	// 配置不存在时，设置默认值
	if !j.Exist("frame_rate") {
		config.FrameRate = 25
	}
	if !j.Exist("encoder") {
		config.Encoder = base.LalflvMetadataEncoder
	}
	if !j.Exist("log.level") {
		config.Log.Level = log.LevelInfo
	}
	if !j.Exist("log.is_to_stdout") {
		config.Log.IsToStdout = true
	}
	if !j.Exist("log.short_file_flag") {
		config.Log.ShortFileFlag = true
	}
	if !j.Exist("log.assert_behavior") {
		config.Log.AssertBehavior = log.AssertFatal
	}

	if config.FrameRate <= 0 {
		return nil, ErrFrameRate
	}
	return &config, nil
}
