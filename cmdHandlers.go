package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hive-monitor/alerts"
	"hive-monitor/db"
	"hive-monitor/hive"
	"hive-monitor/inference"
	"hive-monitor/knn"
	"hive-monitor/models"
	"hive-monitor/records"
	"hive-monitor/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
)

type apiError struct {
	Message string `json:"message"`
}

// modelInfo describes which classification branch is active.
type modelInfo struct {
	Mode       string     `json:"mode"` // "prototype", "remote" or "fallback"
	ServiceURL string     `json:"serviceUrl,omitempty"`
	Stats      *knn.Stats `json:"stats,omitempty"`
	Labels     []string   `json:"labels"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

// newReadingsHandler ingests one sensor payload per request, the HTTP analog
// of a message-delivery trigger. The stored record carries a generated
// message id as its source reference.
func newReadingsHandler(processor *eventProcessor) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var payload models.SensorPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			err := xerrors.New(err)
			logger.ErrorContext(ctx, "failed to parse reading payload", slog.Any("error", err))
			writeJSONError(w, http.StatusBadRequest, "invalid reading payload")
			return
		}

		messageID := fmt.Sprintf("msg_%08x", utils.GenerateUniqueID())
		record, err := processor.processPayload(&payload, "", messageID)
		if err != nil {
			err := xerrors.New(err)
			logger.ErrorContext(ctx, "failed to process reading", slog.Any("error", err))
			writeJSONError(w, http.StatusUnprocessableEntity, "failed to process reading")
			return
		}

		writeJSON(w, http.StatusOK, record)
	}
}

// newClassificationsHandler lists stored records, optionally filtered with
// ?device=HIVE-1234.
func newClassificationsHandler(store RecordStore) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var (
			recordList []models.ClassificationRecord
			err        error
		)
		if device := strings.TrimSpace(r.URL.Query().Get("device")); device != "" {
			recordList, err = store.ListByDevice(device)
		} else {
			recordList, err = store.List()
		}
		if err != nil {
			err := xerrors.New(err)
			logger.ErrorContext(ctx, "failed to load classifications", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "failed to load classifications")
			return
		}

		if recordList == nil {
			recordList = []models.ClassificationRecord{}
		}
		writeJSON(w, http.StatusOK, recordList)
	}
}

func newModelInfoHandler(info modelInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		writeJSON(w, http.StatusOK, info)
	}
}

// buildClassifier selects the classification branch: a remote model service
// when HIVE_MODEL_URL is set, otherwise a prototype artifact from
// HIVE_MODEL_PATH, otherwise the rule-based fallback.
func buildClassifier() (*hive.BehaviorClassifier, modelInfo) {
	info := modelInfo{Labels: hive.Labels}

	if serviceURL := utils.GetEnv("HIVE_MODEL_URL"); serviceURL != "" {
		client := inference.NewClient(serviceURL)
		if err := client.HealthCheck(); err != nil {
			log.Printf("WARNING: model service unavailable (%v), trying local artifact", err)
		} else {
			log.Printf("Using remote model service at %s", serviceURL)
			info.Mode = "remote"
			info.ServiceURL = serviceURL
			return hive.NewBehaviorClassifier(client), info
		}
	}

	modelPath := utils.GetEnv("HIVE_MODEL_PATH", filepath.Join("model", "hive_prototypes.json"))
	neighbourCountStr := utils.GetEnv("HIVE_MODEL_K", "5")
	k, err := strconv.Atoi(neighbourCountStr)
	if err != nil {
		log.Fatalf("invalid HIVE_MODEL_K value '%s': %v", neighbourCountStr, err)
	}

	model, err := knn.LoadModel(modelPath, k)
	if err != nil {
		log.Fatalf("failed to load model artifact: %v", err)
	}
	if model == nil {
		log.Printf("No model artifact at %s, using rule-based fallback", modelPath)
		info.Mode = "fallback"
		return hive.NewBehaviorClassifier(nil), info
	}

	stats := model.Stats()
	log.Printf("Loaded %d prototypes (%d labels, k=%d) from %s",
		stats.PrototypeCount, stats.LabelCount, stats.Neighbours, modelPath)
	info.Mode = "prototype"
	info.Stats = &stats
	return hive.NewBehaviorClassifier(model), info
}

// buildStore selects the record store from HIVE_STORAGE: file (default),
// sqlite or mongo.
func buildStore() RecordStore {
	backend := strings.ToLower(utils.GetEnv("HIVE_STORAGE", "file"))
	switch backend {
	case "file":
		path := utils.GetEnv("HIVE_RECORDS_FILE", "classifications.json")
		log.Printf("Using JSON file record store at %s", path)
		return records.NewFileStore(path)
	case "sqlite":
		dsn := utils.GetEnv("HIVE_SQLITE_PATH", filepath.Join("data", "hive.db"))
		client, err := db.NewSQLiteClient(dsn)
		if err != nil {
			log.Fatalf("failed to open SQLite store: %v", err)
		}
		log.Printf("Using SQLite record store at %s", dsn)
		return client
	case "mongo":
		uri := utils.GetEnv("MONGO_URI", "mongodb://localhost:27017")
		client, err := db.NewMongoClient(uri)
		if err != nil {
			log.Fatalf("failed to connect to MongoDB store: %v", err)
		}
		log.Printf("Using MongoDB record store at %s", uri)
		return client
	default:
		log.Fatalf("unknown HIVE_STORAGE backend '%s' (expected file, sqlite or mongo)", backend)
		return nil
	}
}

// buildNotifier prefers Twilio SMS when configured, otherwise alerts go to
// the structured log.
func buildNotifier() alerts.Notifier {
	notifier, err := alerts.NewTwilioNotifierFromEnv()
	if err != nil {
		log.Printf("SMS alerting disabled (%v), alerts will be logged", err)
		return &alerts.LogNotifier{}
	}
	log.Println("SMS alerting enabled via Twilio")
	return notifier
}

func serve(protocol, port string) {
	protocol = strings.ToLower(protocol)
	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}

	classifier, info := buildClassifier()
	store := buildStore()
	defer store.Close()
	notifier := buildNotifier()

	processor := newEventProcessor(classifier, store, notifier)

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})

	controller := newSocketController(server, processor, info)

	// Persisted records flow straight to connected dashboards.
	processor.onRecord = controller.broadcastRecord

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		log.Printf("CONNECTED: %s, remote addr: %s\n", socket.ID(), socket.RemoteAddr())
		controller.emitModelInfo(socket)
		return nil
	})

	server.OnEvent("/", "requestModelInfo", func(socket socketio.Conn) {
		controller.handleRequestModelInfo(socket)
	})

	server.OnEvent("/", "reading", func(socket socketio.Conn, msg string) {
		// Run handler in goroutine to prevent blocking, with panic recovery
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("panic in handleReading for socket %s: %v\n", socket.ID(), r)
					socket.Emit("readingError", map[string]string{"message": "internal server error during processing"})
				}
			}()
			controller.handleReading(socket, msg)
		}()
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("socket error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
	})

	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	serveHTTPS := protocol == "https"

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", server)
	mux.HandleFunc("/api/readings", newReadingsHandler(processor))
	mux.HandleFunc("/api/classifications", newClassificationsHandler(store))
	mux.HandleFunc("/api/model", newModelInfoHandler(info))
	mux.Handle("/", http.FileServer(http.Dir("static")))

	serveHTTP(server, serveHTTPS, port, mux)
}

func serveHTTP(socketServer *socketio.Server, serveHTTPS bool, port string, handler http.Handler) {
	if handler == nil {
		handler = socketServer
	}
	if serveHTTPS {
		httpsAddr := ":" + port
		httpsServer := &http.Server{
			Addr: httpsAddr,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler: handler,
		}

		certKey := utils.GetEnv("CERT_KEY")
		certFile := utils.GetEnv("CERT_FILE")
		if certKey == "" || certFile == "" {
			log.Fatal("Missing cert")
		}

		log.Printf("Starting HTTPS server on %s\n", httpsAddr)
		if err := httpsServer.ListenAndServeTLS(certFile, certKey); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
	}

	log.Printf("Starting HTTP server on port %v", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
