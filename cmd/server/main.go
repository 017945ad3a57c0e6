package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"rkv/internal/config"
	"rkv/internal/rdb"
	"rkv/internal/replication"
	"rkv/internal/server"
	"rkv/internal/store"
)

const healthCheckInterval = 20 * time.Second

func main() {
	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db := store.NewDatabase()

	if err := rdb.Load(cfg.RDBPath(), db); err != nil {
		log.Printf("rdb: %v; starting with the keys loaded before the error", err)
	}

	if _, err := os.Stat(cfg.RDBEmptyPath()); os.IsNotExist(err) {
		if err := rdb.WriteEmpty(cfg.RDBEmptyPath()); err != nil {
			log.Printf("rdb: could not prepare empty resync template: %v", err)
		}
	}

	role := replication.Master
	if cfg.IsReplica() {
		role = replication.Slave
	}
	selfAddress := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	repl := replication.New(role, selfAddress)

	if cfg.IsReplica() {
		if err := repl.Handshake(cfg.ReplicaOf, cfg.Port, cfg.RDBPath()); err != nil {
			log.Fatalf("replication: handshake with %s failed: %v", cfg.ReplicaOf, err)
		}
		if err := rdb.Load(cfg.RDBPath(), db); err != nil {
			log.Printf("rdb: could not load baseline snapshot received from master: %v", err)
		}
		log.Printf("[replication] handshake with master %s complete", cfg.ReplicaOf)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := make(chan struct{})

	replication.NewDistributor(repl).Run(stop)
	replication.NewHealthChecker(repl, healthCheckInterval).Run(stop)
	go store.RunExpiration(db, cfg.Expiration, stop)

	srv := server.New(cfg, db, repl)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[main] shutting down")
		close(stop)
		cancel()
	}()

	log.Printf("[main] starting rkv on %s:%d as %s", cfg.Host, cfg.Port, repl.RoleString())
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
