package config

import (
	"github.com/danmuck/riakmr/internal/logging"
	"github.com/danmuck/riakmr/internal/mapreduce"
	"github.com/danmuck/riakmr/internal/transport"
)

func (c Config) Transport() transport.Config {
	return transport.Config{
		ConnectTimeout: c.Riak.ConnectTimeout,
		ReadTimeout:    c.Riak.ReadTimeout,
		WriteTimeout:   c.Riak.WriteTimeout,
	}
}

// Query builds a job from the request defaults and the given arguments.
func (c Config) Query(args mapreduce.WalkArgs) mapreduce.Query {
	return mapreduce.Query{
		Bucket:    c.Request.Bucket,
		Key:       c.Request.Key,
		Module:    c.Request.Module,
		Function:  c.Request.Function,
		Args:      args,
		TimeoutMS: c.Request.TimeoutMS,
	}
}

// Logging overlays the [log] section onto base.
func (c Config) Logging(base logging.Config) logging.Config {
	if lvl, ok := logging.ParseLevel(c.Log.Level); ok {
		base.Level = lvl
	}
	base.Timestamp = c.Log.Timestamp
	base.NoColor = c.Log.NoColor
	base.File = c.Log.File
	if c.Log.MaxSizeMB > 0 {
		base.MaxSizeMB = c.Log.MaxSizeMB
	}
	if c.Log.MaxBackups > 0 {
		base.MaxBackups = c.Log.MaxBackups
	}
	if c.Log.MaxAgeDays > 0 {
		base.MaxAgeDays = c.Log.MaxAgeDays
	}
	return base
}
