package server

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/alexschlessinger/deskchat/messages"
)

func (s *Server) systemInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SystemInfo())
}

// SystemInfo describes the host. Fields that cannot be determined are empty.
func SystemInfo() messages.SystemInfo {
	info := messages.SystemInfo{
		OS:  runtime.GOOS + " " + runtime.GOARCH,
		CPU: fmt.Sprintf("%d threads", runtime.NumCPU()),
	}
	if kb, ok := memTotalKB("/proc/meminfo"); ok {
		info.RAM = fmt.Sprintf("%.1f GB", float64(kb)/(1024*1024))
	}
	return info
}

// memTotalKB reads MemTotal from a Linux meminfo file
func memTotalKB(path string) (int64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			n, err := strconv.ParseInt(fields[1], 10, 64)
			return n, err == nil
		}
	}
	return 0, false
}
