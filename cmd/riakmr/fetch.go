package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/danmuck/riakmr/internal/diag"
	"github.com/danmuck/riakmr/internal/mapreduce"
	"github.com/spf13/cobra"
)

type fetchOptions struct {
	bucket    string
	key       string
	module    string
	function  string
	args      mapreduce.WalkArgs
	out       string
	timeoutMS int64
	// timeoutSet distinguishes an explicit --timeout-ms 0 from the default.
	timeoutSet bool
	hexdump    bool
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch HOST PORT",
		Short: "Send one map-reduce job and print the reply",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := joinAddr(args[0], args[1])
			if err != nil {
				return err
			}
			opts.timeoutSet = cmd.Flags().Changed("timeout-ms")
			return runFetch(cmd.Context(), cmd.OutOrStdout(), root, opts, addr)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.bucket, "bucket", "", "bucket (defaults to [request].bucket)")
	f.StringVar(&opts.key, "key", "", "key (defaults to [request].key)")
	f.StringVar(&opts.module, "module", "", "map module (defaults to [request].module)")
	f.StringVar(&opts.function, "function", "", "map function (defaults to [request].function)")
	f.StringVar(&opts.args.Serial, "serial", "", "terminal serial number")
	f.StringVar(&opts.args.Version, "version", "", "terminal software version")
	f.StringVar(&opts.args.App, "app", "", "application name")
	f.StringVar(&opts.args.CRC, "crc", "", "application crc")
	f.StringVar(&opts.args.Buffer, "buffer", "", "free-form walk buffer")
	f.StringVar(&opts.out, "out", "", "write the payload to this file instead of memory")
	f.Int64Var(&opts.timeoutMS, "timeout-ms", 0, "job timeout handed to the remote, 0 included (defaults to [request].timeout_ms)")
	f.BoolVar(&opts.hexdump, "hexdump", false, "hex dump the sent frame and the first reply chunk")
	return cmd
}

func runFetch(ctx context.Context, stdout io.Writer, root *rootOptions, opts *fetchOptions, addr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := root.cfg
	q := cfg.Query(opts.args)
	if opts.bucket != "" {
		q.Bucket = opts.bucket
	}
	if opts.key != "" {
		q.Key = opts.key
	}
	if opts.module != "" {
		q.Module = opts.module
	}
	if opts.function != "" {
		q.Function = opts.function
	}
	if opts.timeoutSet {
		q.TimeoutMS = opts.timeoutMS
	}
	if err := q.Validate(); err != nil {
		return err
	}

	rcfg := mapreduce.DefaultConfig()
	if opts.hexdump {
		rcfg.Dump = stdout
	}
	dest := mapreduce.ToMemory()
	if opts.out != "" {
		dest = mapreduce.ToFile(opts.out)
	}

	// Bound the whole call by the job timeout plus the transport's own limits.
	if q.TimeoutMS > 0 {
		var cancel context.CancelFunc
		budget := time.Duration(q.TimeoutMS)*time.Millisecond + cfg.Riak.ConnectTimeout + cfg.Riak.ReadTimeout
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	client := mapreduce.NewClient(addr, cfg.Transport(), rcfg)
	res, err := client.Do(ctx, q, dest)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "ret=%d ret_code=%d\n", res.Delivered, res.StatusCode)
	if !dest.IsFile() && len(res.Payload) > 0 {
		return diag.HexDump(stdout, res.Payload, "response")
	}
	return nil
}

func joinAddr(host, port string) (string, error) {
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil || p == 0 {
		return "", fmt.Errorf("invalid port %q", port)
	}
	return net.JoinHostPort(host, strconv.FormatUint(p, 10)), nil
}
