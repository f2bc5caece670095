package xlog

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	_ XLogCore = (xLogMultiCore)(nil)
	_ XLogCore = (*zapCore)(nil)
)

type xLogMultiCore []XLogCore

func (mc xLogMultiCore) levelEncoder() zapcore.LevelEncoder {
	return nil
}

func (mc xLogMultiCore) outEncoder() func(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return nil
}

func (mc xLogMultiCore) timeEncoder() zapcore.TimeEncoder {
	return nil
}

func (mc xLogMultiCore) writeSyncer() zapcore.WriteSyncer {
	return nil
}

func (mc xLogMultiCore) With(fields []zap.Field) zapcore.Core {
	clone := make([]zapcore.Core, len(mc))
	for i := range mc {
		clone[i] = mc[i].With(fields)
	}
	return zapcore.NewTee(clone...)
}

func (mc xLogMultiCore) Level() zapcore.Level {
	minLvl := zapcore.InvalidLevel
	for i := range mc {
		if lvl := zapcore.LevelOf(mc[i]); minLvl == zapcore.InvalidLevel || lvl < minLvl {
			minLvl = lvl
		}
	}
	return minLvl
}

func (mc xLogMultiCore) Enabled(lvl zapcore.Level) bool {
	for i := range mc {
		if mc[i].Enabled(lvl) {
			return true
		}
	}
	return false
}

func (mc xLogMultiCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	for i := range mc {
		ce = mc[i].Check(ent, ce)
	}
	return ce
}

func (mc xLogMultiCore) Write(ent zapcore.Entry, fields []zap.Field) error {
	var err error
	for i := range mc {
		err = multierr.Append(err, mc[i].Write(ent, fields))
	}
	return err
}

func (mc xLogMultiCore) Sync() error {
	var err error
	for i := range mc {
		err = multierr.Append(err, mc[i].Sync())
	}
	return err
}

func XLogTeeCore(cores ...XLogCore) XLogCore {
	return xLogMultiCore(cores)
}

func WrapCores(cores []XLogCore, cfg *zapcore.EncoderConfig) (XLogCore, error) {
	newCores := make([]XLogCore, 0, len(cores))
	for i := range cores {
		// Each core gets its own copy, WrapCore writes the encoders into it.
		_cfg := *cfg
		newCore, err := WrapCore(cores[i], &_cfg)
		if err != nil {
			return nil, err
		}
		newCores = append(newCores, newCore)
	}
	return xLogMultiCore(newCores), nil
}

// zapCore gates a plain zap core with the logger level.
type zapCore struct {
	lvlEnabler zapcore.LevelEnabler
	zapcore.Core
}

func (zc *zapCore) levelEncoder() zapcore.LevelEncoder                          { return nil }
func (zc *zapCore) timeEncoder() zapcore.TimeEncoder                            { return nil }
func (zc *zapCore) writeSyncer() zapcore.WriteSyncer                            { return nil }
func (zc *zapCore) outEncoder() func(cfg zapcore.EncoderConfig) zapcore.Encoder { return nil }

func (zc *zapCore) Enabled(lvl zapcore.Level) bool {
	return zc.lvlEnabler.Enabled(lvl) && zc.Core.Enabled(lvl)
}

func (zc *zapCore) Level() zapcore.Level {
	return max(zapcore.LevelOf(zc.lvlEnabler), zapcore.LevelOf(zc.Core))
}

func (zc *zapCore) With(fields []zap.Field) zapcore.Core {
	return &zapCore{lvlEnabler: zc.lvlEnabler, Core: zc.Core.With(fields)}
}

func (zc *zapCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !zc.lvlEnabler.Enabled(ent.Level) {
		return ce
	}
	return zc.Core.Check(ent, ce)
}

func newZapCore(core zapcore.Core) XLogCoreConstructor {
	return func(
		lvlEnabler zapcore.LevelEnabler,
		_ logEncoderType,
		_ logOutWriterType,
		_ zapcore.LevelEncoder,
		_ zapcore.TimeEncoder,
	) XLogCore {
		return &zapCore{lvlEnabler: lvlEnabler, Core: core}
	}
}
