package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"rexdb/pkg/buffer"
	"rexdb/pkg/config"
	"rexdb/pkg/database"
	"rexdb/pkg/repl"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Default port 8335 (BEES).
const DEFAULT_PORT int = 8335

// Listens for SIGINT or SIGTERM and closes the database.
func setupCloseHandler(db *database.Database) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("closehandler invoked")
		db.Close()
		os.Exit(0)
	}()
}

// Start listening for connections at port `port`, running the repl on each.
func startServer(r *repl.REPL, prompt string, port int, logger *zap.Logger) {
	handleConn := func(c net.Conn) {
		defer c.Close()
		r.Run(uuid.New(), prompt, c, c)
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%v", port))
	if err != nil {
		logger.Fatal("listen failed", zap.Error(err))
	}
	fmt.Printf("%v server started listening on localhost:%v\n", config.DBName,
		listener.Addr().(*net.TCPAddr).Port)
	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Warn("accept failed", zap.Error(err))
			continue
		}
		go handleConn(conn)
	}
}

// Start the database.
func main() {
	// Set up flags.
	var promptFlag = flag.Bool("c", true, "use prompt?")
	var dbFlag = flag.String("db", "data/", "DB folder")
	var serverFlag = flag.Bool("server", false, "serve the REPL over tcp")
	var portFlag = flag.Int("p", DEFAULT_PORT, "port number")
	var metricsFlag = flag.String("metrics", "", "address to serve /metrics on (empty: disabled)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Wire the buffer pool counters and optionally serve them.
	metrics := buffer.NewMetrics()
	if *metricsFlag != "" {
		registry := prometheus.NewRegistry()
		if err := metrics.Register(registry); err != nil {
			logger.Fatal("registering metrics", zap.Error(err))
		}
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsFlag, mux); err != nil {
				logger.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	// Open the db.
	db, err := database.Open(*dbFlag, logger, metrics)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	defer db.Close()
	setupCloseHandler(db)

	// Run the REPL, either locally or over tcp.
	prompt := config.GetPrompt(*promptFlag)
	r := database.DatabaseRepl(db)
	if *serverFlag {
		startServer(r, prompt, *portFlag, logger)
	} else {
		r.Run(uuid.New(), prompt, nil, nil)
	}
}
