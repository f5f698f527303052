// Command pomelo is a small demo harness around the protocol core: it can
// mint a connect token, run a server socket, or run a client socket against
// one, exchanging console-typed lines as PAYLOAD packets. Grounded on the
// teacher's own top-level main.go: the same emoji-flavored mode prompt and
// the same os/signal-driven graceful shutdown, generalized from
// tunnel-mode selection to pomelo's server/client/token-issuing modes.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pomelo-net/pomelo-go/application"
	"github.com/pomelo-net/pomelo-go/client"
	"github.com/pomelo-net/pomelo-go/cmd/tokengen"
	"github.com/pomelo-net/pomelo-go/domain"
	"github.com/pomelo-net/pomelo-go/infrastructure/executor"
	"github.com/pomelo-net/pomelo-go/infrastructure/logging"
	"github.com/pomelo-net/pomelo-go/infrastructure/metrics"
	"github.com/pomelo-net/pomelo-go/infrastructure/pool"
	"github.com/pomelo-net/pomelo-go/infrastructure/sequencer"
	"github.com/pomelo-net/pomelo-go/infrastructure/transport/udptransport"
	"github.com/pomelo-net/pomelo-go/server"
)

const (
	PackageName = "pomelo"
	ServerMode  = "s"
	ClientMode  = "c"
	TokenMode   = "token"
	ServerIcon  = "🌐"
	ClientIcon  = "🖥️"
)

func main() {
	var mode string
	if len(os.Args) < 2 {
		mode = strings.ToLower(strings.TrimSpace(promptForMode()))
	} else {
		mode = os.Args[1]
	}

	switch mode {
	case ServerMode:
		fmt.Printf("%s Starting server...\n", ServerIcon)
		runServer(os.Args[2:])
	case ClientMode:
		fmt.Printf("%s️ Starting client...\n", ClientIcon)
		runClient(os.Args[2:])
	case TokenMode:
		runTokenGen(os.Args[2:])
	default:
		fmt.Printf("❌ Unknown mode: %s\n", mode)
		printUsage()
		os.Exit(1)
	}
}

func promptForMode() string {
	fmt.Printf("✨ Welcome to %s!\n", PackageName)
	fmt.Println("Please select mode:")
	fmt.Printf("\t %s     - Server %s\n", ServerMode, ServerIcon)
	fmt.Printf("\t %s     - Client %s\n", ClientMode, ClientIcon)
	fmt.Printf("\t %s - issue a connect token\n", TokenMode)
	fmt.Print("👉 Your choice: ")

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}

func printUsage() {
	fmt.Printf(`Usage: %s <mode> [flags]
Modes:
  %s     - Server %s
  %s     - Client %s
  %s - issue a connect token
`, PackageName, ServerMode, ServerIcon, ClientMode, ClientIcon, TokenMode)
}

func runTokenGen(args []string) {
	fs := flag.NewFlagSet(TokenMode, flag.ExitOnError)
	protocolID := fs.Uint64("protocol-id", 0x1122334455667788, "application protocol id")
	privateKeyHex := fs.String("private-key", "", "64-char hex shared token private key (generated if empty)")
	serverAddr := fs.String("server", "127.0.0.1:40000", "comma-separated server addresses")
	clientID := fs.Uint64("client-id", 1, "client id embedded in the token's private section")
	expireIn := fs.Int64("expire-seconds", 60, "seconds until the token expires")
	timeoutSeconds := fs.Int("timeout-seconds", 15, "idle timeout in seconds; <= 0 disables it")
	_ = fs.Parse(args)

	var privKey [domain.KeyBytes]byte
	if *privateKeyHex == "" {
		k, err := tokengen.GenerateKey()
		if err != nil {
			fmt.Printf("❌ generate private key: %v\n", err)
			os.Exit(1)
		}
		privKey = k
		fmt.Printf("🔑 generated private key: %s\n", hex.EncodeToString(privKey[:]))
	} else {
		b, err := hex.DecodeString(*privateKeyHex)
		if err != nil || len(b) != domain.KeyBytes {
			fmt.Printf("❌ private key must be %d hex bytes\n", domain.KeyBytes)
			os.Exit(1)
		}
		copy(privKey[:], b)
	}

	var addrs []netip.AddrPort
	for _, a := range strings.Split(*serverAddr, ",") {
		ap, err := netip.ParseAddrPort(strings.TrimSpace(a))
		if err != nil {
			fmt.Printf("❌ parse server address %q: %v\n", a, err)
			os.Exit(1)
		}
		addrs = append(addrs, ap)
	}

	tok, err := tokengen.Generate(tokengen.Params{
		ProtocolID:      *protocolID,
		ClientID:        *clientID,
		TimeoutSeconds:  int32(*timeoutSeconds),
		ExpireInSeconds: *expireIn,
		ServerAddresses: addrs,
		PrivateKey:      privKey,
	})
	if err != nil {
		fmt.Printf("❌ generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("🎟️  connect token (hex, %d bytes):\n%s\n", domain.ConnectTokenBytes, hex.EncodeToString(tok[:]))
}

// consoleDelivery implements application.DeliveryLayer by logging every
// lifecycle event and printing inbound payloads to stdout. It stands in for
// whatever reliability/delivery layer a real application would plug in on
// top of the connection core.
type consoleDelivery struct {
	role string
}

func (c *consoleDelivery) PeerSend(application.PeerHandle, []byte) error { return nil }

func (c *consoleDelivery) OnConnected(p application.PeerHandle) {
	fmt.Printf("✅ [%s] connected: client_id=%d addr=%s\n", c.role, p.ClientID(), p.Address())
}

func (c *consoleDelivery) OnDisconnected(p application.PeerHandle) {
	fmt.Printf("👋 [%s] disconnected: client_id=%d addr=%s\n", c.role, p.ClientID(), p.Address())
}

func (c *consoleDelivery) OnReceived(p application.PeerHandle, payload []byte) {
	fmt.Printf("📩 [%s] from client_id=%d: %s\n", c.role, p.ClientID(), string(payload))
}

func (c *consoleDelivery) OnConnectResult(result domain.ConnectResult) {
	fmt.Printf("🔗 [%s] connect result: %s\n", c.role, result)
}

func runServer(args []string) {
	fs := flag.NewFlagSet(ServerMode, flag.ExitOnError)
	bind := fs.String("bind", "127.0.0.1:40000", "address to listen on")
	protocolID := fs.Uint64("protocol-id", 0x1122334455667788, "application protocol id")
	privateKeyHex := fs.String("private-key", "", "64-char hex shared token private key (must match the token issuer)")
	maxClients := fs.Int("max-clients", 64, "maximum connected peers")
	_ = fs.Parse(args)

	if *privateKeyHex == "" {
		fmt.Println("❌ -private-key is required (must match the key used by `pomelo token`)")
		os.Exit(1)
	}
	b, err := hex.DecodeString(*privateKeyHex)
	if err != nil || len(b) != domain.KeyBytes {
		fmt.Printf("❌ private key must be %d hex bytes\n", domain.KeyBytes)
		os.Exit(1)
	}
	var privKey [domain.KeyBytes]byte
	copy(privKey[:], b)

	seq := sequencer.New(1024)
	defer seq.Stop()
	workerPool := executor.New(seq, 4, 256)
	defer workerPool.Stop()
	ctx := pool.NewContext()
	reg := prometheus.NewRegistry()
	m := metrics.NewSocket(reg, "server", *bind)
	delivery := &consoleDelivery{role: "server"}

	sock := server.New(domain.ServerConfig{
		MaxClients: *maxClients,
		ProtocolID: *protocolID,
		PrivateKey: privKey,
		BindAddr:   *bind,
	}, udptransport.New(), seq, workerPool, ctx, delivery, logging.NewLogLogger(), m)

	if err := sock.Start(); err != nil {
		fmt.Printf("❌ start server: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("🌐 server listening on %s (max_clients=%d)\n", *bind, *maxClients)

	waitForSignal()
	sock.Stop()
}

func runClient(args []string) {
	fs := flag.NewFlagSet(ClientMode, flag.ExitOnError)
	tokenHex := fs.String("token", "", "hex-encoded 2048-byte connect token")
	_ = fs.Parse(args)

	if *tokenHex == "" {
		fmt.Println("❌ -token is required (from `pomelo token`)")
		os.Exit(1)
	}
	raw, err := hex.DecodeString(*tokenHex)
	if err != nil || len(raw) != domain.ConnectTokenBytes {
		fmt.Printf("❌ token must be %d hex bytes\n", domain.ConnectTokenBytes)
		os.Exit(1)
	}
	var cfg domain.ClientConfig
	copy(cfg.ConnectToken[:], raw)

	seq := sequencer.New(1024)
	defer seq.Stop()
	workerPool := executor.New(seq, 4, 256)
	defer workerPool.Stop()
	ctx := pool.NewContext()
	reg := prometheus.NewRegistry()
	m := metrics.NewSocket(reg, "client", "local")
	delivery := &consoleDelivery{role: "client"}

	sock := client.New(cfg, udptransport.New(), seq, workerPool, ctx, delivery, logging.NewLogLogger(), m)
	if err := sock.Start(); err != nil {
		fmt.Printf("❌ start client: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("🖥️  client connecting... type a line to send once connected, 'exit' to quit")

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if strings.EqualFold(line, "exit") {
				sock.Disconnect()
				return
			}
			sock.SendPayload([]byte(line))
		}
	}()

	waitForSignal()
	sock.Stop()
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	<-sigChan
	fmt.Println("\n⏹️  Interrupt received. Shutting down...")
	time.Sleep(50 * time.Millisecond)
}
