package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/axonledger/axon/api"
	"github.com/axonledger/axon/global"
	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/util"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	environment interface {
		global.Logging
		global.Metrics
		GetNodeInfo() *api.NodeInfo
		GetStats() *api.Stats
		GetValidators() *api.ValidatorList
		TipIDs(max int) []ledger.TransactionID
		QueryTxStatus(txid *ledger.TransactionID) *api.TxStatus
		ResolveTransactionBytes(txid *ledger.TransactionID) ([]byte, error)
		SubmitTransactionBytes(txBytes []byte) (ledger.TransactionID, error)
	}

	server struct {
		*http.Server
		environment
		metrics
	}

	metrics struct {
		totalRequests prometheus.Counter
	}
)

const TraceTag = "apiServer"

const (
	maxTxUploadSize    = 64 * 1024
	defaultMaxTips     = 100
	absoluteMaxTips    = 1000
	httpServerTimeouts = 10 * time.Second
)

func (srv *server) registerHandlers() {
	// GET request format: '/node_info'
	srv.addHandler(api.PathGetNodeInfo, srv.getNodeInfo)
	// GET request format: '/stats'
	srv.addHandler(api.PathGetStats, srv.getStats)
	// GET request format: '/tips[?max=<num>]'
	srv.addHandler(api.PathGetTips, srv.getTips)
	// GET request format: '/validators'
	srv.addHandler(api.PathGetValidators, srv.getValidators)
	// GET request format: '/query_tx_status?txid=<hex-encoded transaction ID>'
	srv.addHandler(api.PathQueryTxStatus, srv.queryTxStatus)
	// GET request format: '/get_transaction?txid=<hex-encoded transaction ID>'
	srv.addHandler(api.PathGetTransaction, srv.getTransaction)
	// POST request format: '/submit_tx' with canonical transaction bytes in the body
	srv.addHandler(api.PathSubmitTransaction, srv.submitTx)
}

func (srv *server) getNodeInfo(w http.ResponseWriter, _ *http.Request) {
	setHeader(w)
	srv.Tracef(TraceTag, "getNodeInfo invoked")

	writeResponse(w, srv.GetNodeInfo())
}

func (srv *server) getStats(w http.ResponseWriter, _ *http.Request) {
	setHeader(w)
	srv.Tracef(TraceTag, "getStats invoked")

	var resp *api.Stats
	err := util.CatchPanicOrError(func() error {
		resp = srv.GetStats()
		return nil
	})
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeResponse(w, resp)
}

func (srv *server) getTips(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	srv.Tracef(TraceTag, "getTips invoked")

	maxTips := defaultMaxTips
	lst, ok := r.URL.Query()["max"]
	if ok {
		wrong := len(lst) != 1
		if !wrong {
			m, err := strconv.Atoi(lst[0])
			wrong = err != nil || m < 1
			maxTips = m
		}
		if wrong {
			writeErr(w, "wrong parameter 'max' in request 'tips'")
			return
		}
		if maxTips > absoluteMaxTips {
			maxTips = absoluteMaxTips
		}
	}

	tips := srv.TipIDs(maxTips)
	resp := &api.TipList{Tips: make([]string, 0, len(tips))}
	for _, txid := range tips {
		resp.Tips = append(resp.Tips, txid.StringHex())
	}
	writeResponse(w, resp)
}

func (srv *server) getValidators(w http.ResponseWriter, _ *http.Request) {
	setHeader(w)
	srv.Tracef(TraceTag, "getValidators invoked")

	writeResponse(w, srv.GetValidators())
}

func (srv *server) queryTxStatus(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	srv.Tracef(TraceTag, "queryTxStatus invoked")

	txid, ok := txidFromRequest(w, r)
	if !ok {
		return
	}

	var resp *api.TxStatus
	err := util.CatchPanicOrError(func() error {
		resp = srv.QueryTxStatus(&txid)
		return nil
	})
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeResponse(w, resp)
}

func (srv *server) getTransaction(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	srv.Tracef(TraceTag, "getTransaction invoked")

	txid, ok := txidFromRequest(w, r)
	if !ok {
		return
	}

	txBytes, err := srv.ResolveTransactionBytes(&txid)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeResponse(w, &api.TransactionData{TxBytes: hex.EncodeToString(txBytes)})
}

func (srv *server) submitTx(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	srv.Tracef(TraceTag, "submitTx invoked")

	if r.Method != "POST" {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxTxUploadSize)
	txBytes, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var txid ledger.TransactionID
	err = util.CatchPanicOrError(func() error {
		var err1 error
		txid, err1 = srv.SubmitTransactionBytes(txBytes)
		return err1
	})
	if err != nil {
		writeErr(w, fmt.Sprintf("submit_tx: %v", err))
		srv.Tracef(TraceTag, "submit transaction: '%v'", err)
		return
	}
	srv.Tracef(TraceTag, "submitted transaction %s", txid.StringShort())

	writeResponse(w, &api.SubmitResult{TxID: txid.StringHex()})
}

func txidFromRequest(w http.ResponseWriter, r *http.Request) (ledger.TransactionID, bool) {
	lst, ok := r.URL.Query()["txid"]
	if !ok || len(lst) != 1 {
		writeErr(w, "txid expected")
		return ledger.TransactionID{}, false
	}
	txid, err := ledger.TransactionIDFromHexString(lst[0])
	if err != nil {
		writeErr(w, err.Error())
		return ledger.TransactionID{}, false
	}
	return txid, true
}

func writeResponse(w http.ResponseWriter, resp any) {
	respBin, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	_, err = w.Write(respBin)
	util.AssertNoError(err)
}

func writeErr(w http.ResponseWriter, errStr string) {
	respBytes, err := json.Marshal(&api.Error{Error: errStr})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, err = w.Write(respBytes)
	util.AssertNoError(err)
}

func setHeader(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

func Run(addr string, env environment) {
	srv := &server{
		Server: &http.Server{
			Addr:         addr,
			ReadTimeout:  httpServerTimeouts,
			WriteTimeout: httpServerTimeouts,
			IdleTimeout:  httpServerTimeouts,
		},
		environment: env,
	}
	srv.registerHandlers()
	srv.registerMetrics()

	err := srv.ListenAndServe()
	util.AssertNoError(err)
}

func (srv *server) registerMetrics() {
	srv.metrics.totalRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "axon_api_totalRequests",
		Help: "total API requests",
	})
	srv.MetricsRegistry().MustRegister(srv.metrics.totalRequests)
}

func (srv *server) addHandler(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	http.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		handler(w, r)
		srv.metrics.totalRequests.Inc()
	})
}
