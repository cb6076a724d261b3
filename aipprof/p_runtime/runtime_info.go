package p_runtime

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	cpuCFSPeriodUsFile = "cpu.cfs_period_us"
	cpuCFSQuotaUsFile  = "cpu.cfs_quota_us"
)

var (
	cpuCGroupPath = "/sys/fs/cgroup/cpu,cpuacct" // cgroup v1 only
	cpusetPath    = "/proc/1/cpuset"
)

var pageSize = os.Getpagesize()

var (
	runtimeInfoStr string
	once           sync.Once

	startTime = time.Now()
)

// GetRuntimeInfo returns a JSON description of the process. It is computed once.
func GetRuntimeInfo() string {
	once.Do(func() {
		host, _ := os.Hostname()
		m := map[string]string{
			"go_os":        runtime.GOOS,
			"go_arch":      runtime.GOARCH,
			"go_version":   runtime.Version(),
			"compiler":     runtime.Compiler,
			"cpu_num":      strconv.FormatInt(int64(runtime.NumCPU()), 10),
			"cpu_limit":    strconv.FormatFloat(GetCPULimit(), 'f', -1, 64),
			"container_id": ContainerID(),
			"host":         host,
			"pid":          strconv.FormatInt(int64(os.Getpid()), 10),
			"start_time":   strconv.FormatInt(startTime.Unix(), 10),
			"cmd_line":     strings.Join(os.Args, " "),
		}
		b, err := json.Marshal(m)
		if err != nil {
			return
		}
		runtimeInfoStr = string(b)
	})
	return runtimeInfoStr
}

// Cmdline returns the process arguments separated by NUL bytes.
func Cmdline() string {
	return strings.Join(os.Args, "\x00")
}

// GetGoRoutineNum is not cached.
func GetGoRoutineNum() int64 {
	return int64(runtime.NumGoroutine())
}

// GetRss returns the resident set size in bytes, 0 where /proc is unavailable. Not cached.
func GetRss() int64 {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", os.Getpid()))
	if err != nil {
		return 0
	}
	s := bytes.Fields(data)
	if len(s) < 2 {
		return 0
	}
	res, err := strconv.ParseInt(string(s[1]), 10, 64)
	if err != nil {
		return 0
	}
	return res * int64(pageSize)
}

// ContainerID returns the id of the container the process runs in, "" on a host.
// It is the last segment of init's cpuset with the systemd docker decoration removed.
func ContainerID() string {
	data, err := os.ReadFile(cpusetPath)
	if err != nil {
		return ""
	}
	parts := bytes.Split(bytes.TrimSpace(data), []byte("/"))
	id := string(parts[len(parts)-1])
	id = strings.TrimPrefix(id, "docker-")
	id = strings.TrimSuffix(id, ".scope")
	return id
}

// GetCPULimit returns the cpu cores the process can use: the lowest of
// NumCPU, GOMAXPROCS and, inside a container, the cgroup quota when one is set.
func GetCPULimit() (cpuLimit float64) {
	defer func() {
		cpuLimit = math.Min(cpuLimit, float64(runtime.GOMAXPROCS(0)))
	}()

	cpuLimit = float64(runtime.NumCPU())
	if ContainerID() == "" {
		return
	}
	periodUs, err := strconv.ParseInt(readFirstLine(cpuCGroupPath, cpuCFSPeriodUsFile), 10, 64)
	if err != nil || periodUs <= 0 {
		return
	}
	quotaUs, err := strconv.ParseInt(readFirstLine(cpuCGroupPath, cpuCFSQuotaUsFile), 10, 64)
	if err != nil || quotaUs <= 0 {
		return
	}
	if t := float64(quotaUs) / float64(periodUs); t > 0 {
		cpuLimit = t
	}
	return
}

func readFirstLine(path, fileName string) string {
	file, err := os.Open(filepath.Join(path, fileName))
	if err != nil {
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}
