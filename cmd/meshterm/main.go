package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/statico/meshtastic-cli-sub001/internal/app"
	"github.com/statico/meshtastic-cli-sub001/internal/bus"
	"github.com/statico/meshtastic-cli-sub001/internal/config"
	"github.com/statico/meshtastic-cli-sub001/internal/connectors"
	"github.com/statico/meshtastic-cli-sub001/internal/domain"
	"github.com/statico/meshtastic-cli-sub001/internal/logging"
	"github.com/statico/meshtastic-cli-sub001/internal/persistence"
	"github.com/statico/meshtastic-cli-sub001/internal/radio"
	"github.com/statico/meshtastic-cli-sub001/internal/transport"
)

const maxHexPreviewLen = 64

func main() {
	if err := run(); err != nil {
		slog.Error("run meshterm", "error", err)
		os.Exit(1)
	}
}

func run() error {
	host := flag.String("host", "", "radio ip/hostname")
	port := flag.Int("port", 0, "radio http port (0 uses the scheme default)")
	useTLS := flag.Bool("tls", false, "connect over https")
	insecureTLS := flag.Bool("insecure-tls", false, "accept self-signed certificates on non-loopback hosts")
	session := flag.String("session", "", "session name (defaults to config)")
	clearSession := flag.Bool("clear-session", false, "delete the session database before starting")
	forgetNode := flag.String("forget-node", "", "remove this node id (e.g. !a1b2c3d4) from the session and keep listening")
	listenFor := flag.Duration("listen-for", 0, "listen duration, e.g. 30s (0 listens until interrupt)")
	sendTo := flag.String("send-to", "", "send one text message to this node id (e.g. !a1b2c3d4) and keep listening")
	sendText := flag.String("send-text", "", "message body for -send-to")
	traceroute := flag.String("traceroute", "", "probe the route to this node id and keep listening for the reply")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := app.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(*host) != "" {
		cfg.Connection.Address = strings.TrimSpace(*host)
	}
	if *port > 0 {
		cfg.Connection.Port = *port
	}
	if *useTLS {
		cfg.Connection.UseTLS = true
	}
	if *insecureTLS {
		cfg.Connection.InsecureTLS = true
	}
	if strings.TrimSpace(*session) != "" {
		cfg.Session = strings.TrimSpace(*session)
	}
	if strings.TrimSpace(cfg.Connection.Address) == "" {
		return fmt.Errorf("missing radio host: set -host or save connection address in config")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("cli")
	logger.Info("starting meshterm", "session", cfg.Session, "host", cfg.Connection.Address)

	dbPath, err := paths.SessionDBFile(cfg.Session)
	if err != nil {
		return fmt.Errorf("resolve session db: %w", err)
	}
	if *clearSession {
		if err := persistence.RemoveSessionFiles(dbPath); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		logger.Info("session cleared", "session", cfg.Session)
	}

	db, err := persistence.Open(ctx, dbPath, time.Duration(cfg.Storage.BusyTimeoutMS)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn("close sqlite", "error", closeErr)
		}
	}()

	nodeRepo := persistence.NewNodeRepo(db)
	msgRepo := persistence.NewMessageRepo(db, cfg.Storage.AckTimeout())
	packetRepo := persistence.NewPacketRepo(db, cfg.Storage.PacketRetention, logMgr.Logger("persistence"))
	diagRepo := persistence.NewDiagnosticsRepo(db)

	b := bus.New(logMgr.Logger("bus"))
	defer b.Close()

	nodeStore := domain.NewNodeStore()
	packetStore := domain.NewPacketStore(cfg.Storage.PacketRetention)
	if err := domain.LoadStoresFromRepositories(ctx, nodeStore, packetStore, nodeRepo, packetRepo, cfg.Storage.PacketRetention); err != nil {
		return fmt.Errorf("bootstrap stores: %w", err)
	}
	logger.Info("cached state", "nodes", len(nodeStore.SnapshotSorted()), "packets", packetStore.Len())
	nodeStore.Start(ctx, b)
	packetStore.Start(ctx, b)

	writer := persistence.NewWriterQueue(logMgr.Logger("persistence"), cfg.Storage.WriteQueueSize)
	writer.Start(ctx)
	domain.StartPersistenceProjection(ctx, b, writer, nodeRepo, msgRepo, packetRepo, diagRepo)

	if strings.TrimSpace(*forgetNode) != "" {
		id, ok := domain.ParseNodeID(*forgetNode)
		if !ok {
			return fmt.Errorf("parse -forget-node: invalid node id %q", *forgetNode)
		}
		if nodeStore.Forget(b, id) {
			logger.Info("node forgotten", "id", domain.FormatNodeID(id))
		} else {
			logger.Warn("node not found", "id", domain.FormatNodeID(id))
		}
	}

	tr := transport.NewHTTPTransport(transport.Options{
		Address:              cfg.Connection.Address,
		Port:                 cfg.Connection.Port,
		UseTLS:               cfg.Connection.UseTLS,
		InsecureTLS:          cfg.Connection.InsecureTLS,
		PollInterval:         cfg.Polling.PollInterval(),
		RequestTimeout:       cfg.Polling.RequestTimeout(),
		MaxBackoff:           cfg.Polling.MaxBackoff(),
		BatchCeiling:         cfg.Polling.BatchCeiling,
		YieldEvery:           cfg.Polling.YieldEvery,
		MaxConsecutiveErrors: cfg.Polling.MaxConsecutiveErrors,
		QueueSize:            cfg.Polling.EventQueueSize,
	})
	defer func() {
		if closeErr := tr.Close(); closeErr != nil {
			logger.Warn("close transport", "error", closeErr)
		}
	}()
	if err := tr.Connect(ctx); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}

	var localNodeID uint32
	if id, err := tr.LocalNodeID(ctx); err != nil {
		logger.Warn("local node discovery failed, acknowledgment correlation degraded", "error", err)
	} else {
		localNodeID = id
		logger.Info("local node", "id", domain.FormatNodeID(id))
	}

	codec, err := radio.NewDevCodec()
	if err != nil {
		return fmt.Errorf("initialize codec: %w", err)
	}
	radioSvc := radio.NewService(logMgr.Logger("radio"), b, tr, codec, localNodeID)
	radioSvc.Start(ctx)

	watch(ctx, b, logMgr.Logger("watch"))

	if strings.TrimSpace(*sendTo) != "" {
		dest, ok := domain.ParseNodeID(*sendTo)
		if !ok {
			return fmt.Errorf("parse -send-to: invalid node id %q", *sendTo)
		}
		res := <-radioSvc.SendText(dest, 0, *sendText, 0)
		if res.Err != nil {
			return fmt.Errorf("send text: %w", res.Err)
		}
		logger.Info("message queued", "packet_id", res.Message.PacketID, "to", domain.FormatNodeID(dest))
	}

	if strings.TrimSpace(*traceroute) != "" {
		dest, ok := domain.ParseNodeID(*traceroute)
		if !ok {
			return fmt.Errorf("parse -traceroute: invalid node id %q", *traceroute)
		}
		if err := radioSvc.SendTraceroute(ctx, dest); err != nil {
			return fmt.Errorf("send traceroute: %w", err)
		}
		logger.Info("traceroute dispatched", "to", domain.FormatNodeID(dest))
	}

	if *listenFor > 0 {
		logger.Info("listen mode", "duration", *listenFor)
		select {
		case <-ctx.Done():
		case <-time.After(*listenFor):
		}

		return nil
	}

	logger.Info("listening until interrupt")
	<-ctx.Done()

	return nil
}

func watch(ctx context.Context, b bus.MessageBus, logger *slog.Logger) {
	connSub := b.Subscribe(connectors.TopicConnStatus)
	nodeSub := b.Subscribe(connectors.TopicNodeUpdate)
	msgSub := b.Subscribe(connectors.TopicMessage)
	statusSub := b.Subscribe(connectors.TopicMessageStatus)
	rawInSub := b.Subscribe(connectors.TopicRawFrameIn)
	traceSub := b.Subscribe(connectors.TopicTracerouteLog)

	go func() {
		defer b.Unsubscribe(connSub, connectors.TopicConnStatus)
		defer b.Unsubscribe(nodeSub, connectors.TopicNodeUpdate)
		defer b.Unsubscribe(msgSub, connectors.TopicMessage)
		defer b.Unsubscribe(statusSub, connectors.TopicMessageStatus)
		defer b.Unsubscribe(rawInSub, connectors.TopicRawFrameIn)
		defer b.Unsubscribe(traceSub, connectors.TopicTracerouteLog)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				if status, ok := raw.(connectors.ConnStatus); ok {
					logger.Info("conn", "state", status.State, "target", status.Target, "error", status.Err)
				}
			case raw, ok := <-nodeSub:
				if !ok {
					return
				}
				if update, ok := raw.(domain.NodeUpdate); ok {
					quality := domain.SignalUnknown
					if update.Node.SNR != nil && update.Node.RSSI != nil {
						quality = domain.DetermineSignalQuality(*update.Node.SNR, *update.Node.RSSI)
					}
					logger.Info("node",
						"id", domain.FormatNodeID(update.Node.ID),
						"short_name", update.Node.ShortName,
						"source", update.Source,
						"signal", quality,
					)
				}
			case raw, ok := <-msgSub:
				if !ok {
					return
				}
				if msg, ok := raw.(domain.Message); ok {
					logger.Info("message",
						"from", domain.FormatNodeID(msg.From),
						"to", domain.FormatNodeID(msg.To),
						"direction", msg.Direction,
						"status", msg.Status.String(),
						"text", msg.Text,
					)
				}
			case raw, ok := <-statusSub:
				if !ok {
					return
				}
				if update, ok := raw.(domain.MessageStatusUpdate); ok {
					logger.Info("delivery",
						"packet_id", update.PacketID,
						"status", update.Status.String(),
						"reason", update.Reason,
					)
				}
			case raw, ok := <-rawInSub:
				if !ok {
					return
				}
				if frame, ok := raw.(connectors.RawFrame); ok {
					logger.Debug("raw in", "len", frame.Len, "hex", previewHex(frame.Hex))
				}
			case raw, ok := <-traceSub:
				if !ok {
					return
				}
				if resp, ok := raw.(domain.TracerouteResponse); ok {
					hops := make([]string, 0, len(resp.Route))
					for _, hop := range resp.Route {
						hops = append(hops, domain.FormatNodeID(hop))
					}
					logger.Info("traceroute reply",
						"from", domain.FormatNodeID(resp.Responder),
						"route", strings.Join(hops, " > "),
					)
				}
			}
		}
	}()
}

func previewHex(hex string) string {
	if len(hex) <= maxHexPreviewLen {
		return hex
	}

	return hex[:maxHexPreviewLen] + "..."
}
