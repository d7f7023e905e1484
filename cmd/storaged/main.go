// Command storaged runs one storage node: the partitions it owns, the
// embedded metadata group a single-node deployment keeps alongside
// them, and the mTLS-secured RPC surface clients and other nodes
// reach it through.
//
// Grounded on cmd/warren/main.go's cobra root + persistent log flags +
// cobra.OnInitialize(initLogging) shape, with the container-orchestration
// subcommands (cluster/worker/service/node/secret/volume) replaced by a
// single serve command over this repository's own data plane.
package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc/credentials"

	"github.com/cuemby/nebulastore/internal/metad"
	"github.com/cuemby/nebulastore/internal/rpc"
	"github.com/cuemby/nebulastore/internal/schema"
	"github.com/cuemby/nebulastore/internal/transportsec"
	"github.com/cuemby/nebulastore/pkg/config"
	"github.com/cuemby/nebulastore/pkg/log"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func unixClock() int64 { return time.Now().Unix() }

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "storaged",
	Short:   "storaged runs a nebulastore storage node",
	Version: Version,
}

var cfgFile string
var v *viper.Viper

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	v = config.New("")
	config.BindFlags(serveCmd, v)

	cobra.OnInitialize(initLogging)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start this node and serve the storage RPC surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
			v.SetConfigType("yaml")
			_ = v.ReadInConfig()
		}
		cfg, err := config.Load(v)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.NodeID == "" {
			return fmt.Errorf("--node-id is required")
		}

		rpcAddr, _ := cmd.Flags().GetString("rpc-addr")
		spaceName, _ := cmd.Flags().GetString("bootstrap-space")
		partitions, _ := cmd.Flags().GetInt("bootstrap-partitions")

		log.Logger.Info().Str("node_id", cfg.NodeID).Str("bind_addr", cfg.BindAddr).Msg("starting storaged")

		h := newHost(cfg)
		if err := h.bootstrapMeta(); err != nil {
			return fmt.Errorf("bootstrap metadata group: %w", err)
		}
		if err := h.ensureSpace(metad.SpaceDef{
			SpaceID:        1,
			Name:           spaceName,
			VidLen:         8,
			PartitionCount: partitions,
			ReplicaFactor:  1,
		}); err != nil {
			return fmt.Errorf("bootstrap space %q: %w", spaceName, err)
		}

		sch := schema.NewCache(h.metaClient())
		if err := sch.Refresh(cmd.Context()); err != nil {
			return fmt.Errorf("initial schema refresh: %w", err)
		}

		pipeline := h.newPipeline(sch)
		reader := h.newReader(sch)
		server := rpc.NewServer(pipeline, reader, sch, h)

		creds, err := serverCredentials(cfg.NodeID)
		if err != nil {
			return fmt.Errorf("build TLS credentials: %w", err)
		}
		ln := rpc.NewListener(server, creds)
		if err := ln.Bind(rpcAddr); err != nil {
			return fmt.Errorf("bind %s: %w", rpcAddr, err)
		}
		log.Logger.Info().Str("addr", ln.Addr().String()).Msg("storage RPC surface listening")

		errCh := make(chan error, 1)
		go func() {
			if err := ln.Serve(); err != nil {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigCh:
			log.Logger.Info().Msg("shutting down")
		case err := <-errCh:
			log.Logger.Error().Err(err).Msg("rpc listener stopped")
		}

		ln.Stop()
		h.shutdown()
		return nil
	},
}

func init() {
	serveCmd.Flags().String("rpc-addr", "127.0.0.1:9669", "storage RPC listen address")
	serveCmd.Flags().String("bootstrap-space", "default", "name of the space to bootstrap on first run")
	serveCmd.Flags().Int("bootstrap-partitions", 1, "number of partitions to bootstrap for the space")
}

// serverCredentials loads this node's cert+key and the cluster CA
// from ~/.nebulastore/certs, initializing a brand-new single-node CA
// and issuing a node certificate if this is the first run. A real
// multi-host deployment distributes one CA's root to every node out
// of band (storagectl would be the natural place to script that);
// bootstrapping a fresh CA per node here is only correct for a
// single-node deployment, exactly like this binary's
// bootstrapMeta/ensureSpace path.
func serverCredentials(nodeID string) (credentials.TransportCredentials, error) {
	certDir, err := transportsec.GetCertDir("storage", nodeID)
	if err != nil {
		return nil, err
	}

	ca := transportsec.NewCertAuthority()
	var nodeCert *tls.Certificate

	if transportsec.CertExists(certDir) {
		nodeCert, err = transportsec.LoadCertFromFile(certDir)
		if err != nil {
			return nil, fmt.Errorf("load node certificate: %w", err)
		}
		rootCert, err := transportsec.LoadCACertFromFile(certDir)
		if err != nil {
			return nil, fmt.Errorf("load CA certificate: %w", err)
		}
		rootPool := x509.NewCertPool()
		rootPool.AddCert(rootCert)
		return rpc.NewServerTLSCredentials(*nodeCert, rootPool), nil
	}

	if err := ca.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize CA: %w", err)
	}
	nodeCert, err = ca.IssueNodeCertificate(nodeID, "storage", []string{"localhost"}, []net.IP{net.ParseIP("127.0.0.1")})
	if err != nil {
		return nil, fmt.Errorf("issue node certificate: %w", err)
	}
	if err := transportsec.SaveCertToFile(nodeCert, certDir); err != nil {
		return nil, fmt.Errorf("save node certificate: %w", err)
	}
	if err := transportsec.SaveCACertToFile(ca.GetRootCACert(), certDir); err != nil {
		return nil, fmt.Errorf("save CA certificate: %w", err)
	}

	rootCert, err := x509.ParseCertificate(ca.GetRootCACert())
	if err != nil {
		return nil, fmt.Errorf("parse CA certificate: %w", err)
	}
	rootPool := x509.NewCertPool()
	rootPool.AddCert(rootCert)
	return rpc.NewServerTLSCredentials(*nodeCert, rootPool), nil
}
