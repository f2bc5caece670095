package xlog

import (
	"go.uber.org/zap/zapcore"
)

// streamEncoderCfg keeps the caller and function of each entry.
func streamEncoderCfg(lvlEnc zapcore.LevelEncoder, tsEnc zapcore.TimeEncoder) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:    "msg",
		LevelKey:      "lvl",
		EncodeLevel:   lvlEnc,
		TimeKey:       "ts",
		EncodeTime:    tsEnc,
		CallerKey:     "callAt",
		EncodeCaller:  zapcore.ShortCallerEncoder,
		FunctionKey:   "fn",
		NameKey:       "component",
		EncodeName:    zapcore.FullNameEncoder,
		StacktraceKey: coreKeyIgnored,
	}
}

// newStreamCore writes into one of the registered writers (stdout,
// stderr or a test buffer). Unregistered writers build no core.
func newStreamCore(
	lvlEnabler zapcore.LevelEnabler,
	encoder logEncoderType,
	writer logOutWriterType,
	lvlEnc zapcore.LevelEncoder,
	tsEnc zapcore.TimeEncoder,
) XLogCore {
	ws, ok := writerMap.Get(writer)
	if !ok || ws == nil {
		return nil
	}
	enc := getEncoderByType(encoder)
	return &commonCore{
		lvlEnabler: lvlEnabler,
		lvlEnc:     lvlEnc,
		tsEnc:      tsEnc,
		ws:         ws,
		enc:        enc,
		core:       zapcore.NewCore(enc(streamEncoderCfg(lvlEnc, tsEnc)), ws, lvlEnabler),
	}
}
