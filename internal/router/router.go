// Package router dispatches a parsed command.Command onto the
// Database, Config, and Replicator, producing the resp.Operation
// reply. Grounded on the source's server/router.rs: one method per
// command, a flat match over the command name.
package router

import (
	"fmt"
	"strconv"
	"strings"

	"rkv/internal/command"
	"rkv/internal/config"
	"rkv/internal/replication"
	"rkv/internal/resp"
	"rkv/internal/store"
)

// Router owns references to every subsystem a command might touch. It
// holds no state of its own.
type Router struct {
	cfg  *config.Config
	db   *store.Database
	repl *replication.Replicator
}

// New builds a Router over the given subsystems.
func New(cfg *config.Config, db *store.Database, repl *replication.Replicator) *Router {
	return &Router{cfg: cfg, db: db, repl: repl}
}

// Handle dispatches op, returning the reply Operation. Unknown commands,
// argument errors, and an op that is not a command-shaped Array
// (rejected by command.FromOperation) all produce an Error reply rather
// than a Go error, so a misbehaving client never brings the connection
// down.
func (rt *Router) Handle(op resp.Operation) resp.Operation {
	cmd, err := command.FromOperation(op)
	if err != nil {
		return resp.Error(err.Error())
	}

	reply, err := rt.dispatch(cmd)
	if err != nil {
		return resp.Error(err.Error())
	}
	return reply
}

// IsWrite reports whether op is a write command, used by the
// connection handler to decide whether to enqueue it for replica
// fan-out after Handle succeeds.
func IsWrite(op resp.Operation) bool {
	cmd, err := command.FromOperation(op)
	if err != nil {
		return false
	}
	return cmd.IsWrite()
}

func (rt *Router) dispatch(cmd command.Command) (resp.Operation, error) {
	switch cmd.Name {
	case "ping", "command":
		return resp.SimpleString("PONG"), nil
	case "echo":
		return rt.echo(cmd)
	case "get":
		return rt.get(cmd)
	case "set":
		return rt.set(cmd)
	case "expire":
		return rt.expire(cmd)
	case "del":
		return rt.del(cmd)
	case "ttl":
		return rt.ttl(cmd)
	case "keys":
		return rt.keys(cmd)
	case "config":
		return rt.config(cmd)
	case "info":
		return rt.info(cmd)
	case "replconf":
		return rt.replconf(cmd)
	case "psync":
		return rt.psync(cmd)
	default:
		return nil, fmt.Errorf("router: unknown command %q", cmd.Name)
	}
}

func (rt *Router) echo(cmd command.Command) (resp.Operation, error) {
	arg, err := cmd.Arg()
	if err != nil {
		return nil, err
	}
	return resp.NewBulkString(arg), nil
}

func (rt *Router) get(cmd command.Command) (resp.Operation, error) {
	key, err := cmd.Arg()
	if err != nil {
		return nil, err
	}
	value, ok := rt.db.Get(key)
	if !ok {
		return resp.Null{}, nil
	}
	return resp.Bulk(value), nil
}

func (rt *Router) set(cmd command.Command) (resp.Operation, error) {
	key, value, err := cmd.Args2()
	if err != nil {
		return nil, err
	}

	meta, err := store.MetadataFromArgs(cmd.After(2))
	if err != nil {
		return nil, err
	}

	rt.db.Set(key, []byte(value), meta)
	return resp.SimpleString("OK"), nil
}

func (rt *Router) expire(cmd command.Command) (resp.Operation, error) {
	key, secondsText, err := cmd.Args2()
	if err != nil {
		return nil, err
	}

	seconds, err := strconv.ParseUint(secondsText, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("router: EXPIRE: invalid seconds %q", secondsText)
	}

	meta := store.MetadataFromSeconds(seconds)
	expireAtMs, ok := rt.db.SetExpire(key, meta)
	if !ok {
		return resp.Integer(0), nil
	}
	return resp.Integer(int64(expireAtMs)), nil
}

func (rt *Router) del(cmd command.Command) (resp.Operation, error) {
	key, err := cmd.Arg()
	if err != nil {
		return nil, err
	}
	rt.db.Del(key)
	return resp.Integer(1), nil
}

func (rt *Router) ttl(cmd command.Command) (resp.Operation, error) {
	key, err := cmd.Arg()
	if err != nil {
		return nil, err
	}
	return resp.Integer(rt.db.TTL(key)), nil
}

func (rt *Router) keys(cmd command.Command) (resp.Operation, error) {
	pattern, err := cmd.Arg()
	if err != nil {
		return nil, err
	}

	matches := rt.db.Search(pattern)
	items := make(resp.Array, 0, len(matches))
	for _, key := range matches {
		// Search already lazily filters expired keys under its own
		// lock; TryExpire here only catches a key that expired in the
		// (tiny) window between Search's snapshot and this loop.
		if rt.db.TryExpire(key) {
			continue
		}
		items = append(items, resp.NewBulkString(key))
	}
	return items, nil
}

func (rt *Router) config(cmd command.Command) (resp.Operation, error) {
	sub, key, err := cmd.Args2()
	if err != nil {
		return nil, err
	}
	if strings.ToLower(sub) != "get" {
		return nil, fmt.Errorf("router: unexpected CONFIG subcommand %q", sub)
	}

	value, ok := rt.cfg.Get(key)
	if !ok {
		return resp.Array{}, nil
	}
	return resp.BulkStrings(key, value), nil
}

func (rt *Router) info(cmd command.Command) (resp.Operation, error) {
	section, err := cmd.Arg()
	if err != nil {
		return nil, err
	}
	if strings.ToLower(section) != "replication" {
		return nil, fmt.Errorf("router: unexpected INFO section %q", section)
	}

	master := rt.repl.Master()
	fields := []struct{ key, value string }{
		{"role", rt.repl.RoleString()},
		{"connected_slaves", strconv.Itoa(rt.repl.ReplicaCount())},
		{"master_replid", master.ID},
		{"master_replid2", "0000000000000000000000000000000000000000"},
		{"master_repl_offset", "0"},
		{"second_repl_offset", "-1"},
		{"repl_backlog_active", "0"},
		{"repl_backlog_size", "1048576"},
		{"repl_backlog_first_byte_offset", "0"},
		{"repl_backlog_histlen", "0"},
	}

	var sb strings.Builder
	sb.WriteString("# Replication\n")
	for _, f := range fields {
		sb.WriteString(f.key)
		sb.WriteByte(':')
		sb.WriteString(f.value)
		sb.WriteByte('\n')
	}
	return resp.NewBulkString(sb.String()), nil
}

func (rt *Router) replconf(cmd command.Command) (resp.Operation, error) {
	sub, arg, err := cmd.Args2()
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(sub) {
	case "listening-port":
		address := fmt.Sprintf("127.0.0.1:%s", arg)
		if err := rt.repl.JoinReplica(address); err != nil {
			return nil, err
		}
		return resp.SimpleString("OK"), nil
	case "capa":
		return resp.SimpleString("OK"), nil
	case "getack":
		return resp.BulkStrings("REPLCONF", "ACK", strconv.FormatUint(uint64(rt.repl.Offset()), 10)), nil
	default:
		return nil, fmt.Errorf("router: unexpected REPLCONF subcommand %q", sub)
	}
}

func (rt *Router) psync(cmd command.Command) (resp.Operation, error) {
	_, offsetText, err := cmd.Args2()
	if err != nil {
		return nil, err
	}
	if _, err := strconv.Atoi(offsetText); err != nil {
		return nil, fmt.Errorf("router: PSYNC: invalid offset %q", offsetText)
	}

	return resp.Sequential{
		resp.SimpleString(fmt.Sprintf("FULLRESYNC %s 0", rt.repl.SelfID())),
		resp.File(rt.cfg.RDBEmptyPath()),
	}, nil
}
