// Package status implements the memory-mapped, versioned host and
// directory status tables (FSA/FRA) and the message cache (MDB), along
// with the per-position attach protocol and the byte-range locks that
// guard counter and status mutations.
//
// The on-disk layout mirrors a fixed "word offset" header followed by a
// dense record array, mapped with lib/mmap the same way connection
// pools map anonymous pages elsewhere in this module; no binary-layout
// library is wired in, so the header/record codec here is hand-rolled
// encoding/binary, not unsafe pointer casts.
package status

import "time"

// MaxNoParallelJobs bounds the per-host job_status slots.
const MaxNoParallelJobs = 8

// MaxRealHostnames is the number of real_hostname slots a host toggles
// between.
const MaxRealHostnames = 2

// ErrorHistoryLen is the length of a host's rolling error_history buffer.
const ErrorHistoryLen = 12

// TimeEntriesLen bounds a directory's scheduled check-time table.
const TimeEntriesLen = 10

// Stale is the marker value written into the first header word to signal
// that readers must detach and re-attach to a freshly swapped-in table.
const Stale int32 = -1

// CurrentVersion is the on-disk structure version this package writes.
const CurrentVersion byte = 1

// Lock byte offsets within a record's private lock region: counters
// and status are each guarded by their own advisory byte-range lock so
// unrelated fields can be updated concurrently.
const (
	LockTFC = 0 // guards total_file_counter / total_file_size
	LockHS  = 1 // guards host_status
)

// Protocol bits. A host normally carries exactly one of these, but the
// field is a bitmask so a host record can advertise fallback protocols.
const (
	ProtoFTP uint32 = 1 << iota
	ProtoSFTP
	ProtoHTTP
	ProtoSMTP
	ProtoPOP3
	ProtoWMO
	ProtoLOC
	ProtoEXEC
)

// Host status bits (fsa[].host_status).
const (
	HostPaused uint32 = 1 << iota
	HostStopped
	HostDisabled
	HostErrorsPending
	HostAck
	HostOffline
	HostAckTimed
	HostOfflineTimed
	HostErrorOfflineStatic
	HostErrorQueueSet
	HostConfigDisabled
)

// ConnectStatus values for a job slot.
type ConnectStatus int32

// Known connect_status values; protocol-specific *_ACTIVE values are
// assigned starting at protoActiveBase so each protocol gets a distinct,
// stable status code without this package needing to know every adapter.
const (
	Disconnect ConnectStatus = iota
	NotWorking
	Connecting
	protoActiveBase
)

// ProtocolActive returns the connect_status value meaning "actively
// transferring over protocol p" for the given protocol ordinal.
func ProtocolActive(protocolOrdinal int) ConnectStatus {
	return protoActiveBase + ConnectStatus(protocolOrdinal)
}

// ProtocolOrdinal returns the bit index of the lowest set protocol bit in
// mask (0 for ProtoFTP, 1 for ProtoSFTP, ...), for passing to
// ProtocolActive. Returns -1 if mask has no protocol bit set.
func ProtocolOrdinal(mask uint32) int {
	if mask == 0 {
		return -1
	}
	ordinal := 0
	for mask&1 == 0 {
		mask >>= 1
		ordinal++
	}
	return ordinal
}

// JobSlot is one element of fsa[].job_status[MAX_NO_PARALLEL_JOBS].
type JobSlot struct {
	ConnectStatus    ConnectStatus
	NoOfFiles        int32
	NoOfFilesDone    int32
	FileSize         int64
	FileSizeDone     int64
	FileSizeInUse    int64
	FileSizeInUseDone int64
	FileNameInUse    [256]byte
	UniqueName       [3]byte // sub-state mini-flags, see IsKeepConnectedIdle
	ProcID           int32
	JobID            uint32
}

// IsKeepConnectedIdle reports whether this slot is alive but parked in
// the keep-connected idle sub-state: a live proc_id whose unique_name
// mini-flags show unique_name[0]==0, or unique_name[1]==0 with
// unique_name[2]<6. Slots with no live process (proc_id <= 0 — a
// zero-initialised table holds 0, a cleared slot -1) are never idle.
func (j *JobSlot) IsKeepConnectedIdle() bool {
	if j.ProcID <= 0 {
		return false
	}
	if j.UniqueName[0] == 0 {
		return true
	}
	return j.UniqueName[1] == 0 && j.UniqueName[2] < 6
}

// FSARecord is one host's entry in the File-transfer Status Area.
type FSARecord struct {
	HostAlias         [40]byte
	RealHostname      [MaxRealHostnames][40]byte
	HostToggle         byte
	HostDspName       [40]byte
	Protocol           uint32
	HostStatus         uint32
	ErrorCounter       int32
	MaxErrors          int32
	ErrorHistory       [ErrorHistoryLen]uint32
	TotalFileCounter   int32
	TotalFileSize      int64
	FileCounterDone    int64
	BytesSend          int64
	Connections        int32
	ActiveTransfers    int32
	AllowedTransfers   int32
	TransferRateLimit  int64 // bytes/sec configured on the host itself
	TRLPerProcess      int64 // KiB/s share computed by the TRL engine
	BlockSize          int32
	TransferTimeout    int32
	KeepConnected      int32
	LastConnection     int64 // unix seconds
	JobsQueued         int32
	AutoToggle         bool
	OriginalTogglePos  byte
	JobStatus          [MaxNoParallelJobs]JobSlot
}

// NetActiveTransfers returns active_transfers minus the slots parked in
// the keep-connected idle sub-state.
func (r *FSARecord) NetActiveTransfers() int32 {
	idle := int32(0)
	for i := range r.JobStatus {
		if r.JobStatus[i].IsKeepConnectedIdle() {
			idle++
		}
	}
	n := r.ActiveTransfers - idle
	if n < 0 {
		return 0
	}
	return n
}

// Directory flag/option bits (fra[].dir_flag / dir_options).
const (
	DirMaxCopied uint32 = 1 << iota
	DirFilesInQueue
	DirLinkNoExec
	DirDisabled
	DirErrorSet
	DirErrorOffline
	DirWarnTimeReached
	DirAllDisabled
	DirAcceptDotFiles
	DirDontGetDirList
	DirInotify
)

// TimeEntry is one scheduled check-time window for a directory.
type TimeEntry struct {
	Minute, Hour, DayOfMonth, Month, DayOfWeek uint64
}

// FRARecord is one directory's entry in the File-retrieve Area.
type FRARecord struct {
	DirAlias               [40]byte
	URL                    [256]byte
	RetrieveWorkDir        [256]byte
	LSDataAlias            [40]byte
	Protocol               uint32
	DirFlag                uint32
	DirOptions             uint32
	FilesInDir             int32
	BytesInDir             int64
	FilesQueued            int32
	BytesInQueue           int64
	ErrorCounter           int32
	KeepConnected          int32
	NextCheckTime          int64
	RemoteFileCheckInterval int32
	NoOfTimeEntries        int32
	TimeEntries            [TimeEntriesLen]TimeEntry
	Timezone               [64]byte
	StupidMode             bool
	Remove                 bool
}

// MaxMessageDataSize bounds a single cached message's body so MDBRecord
// stays a fixed-size, directly mmap-encodable record like FSA/FRA.
const MaxMessageDataSize = 4096

// MDBRecord is one entry of the outbound message cache.
type MDBRecord struct {
	MessageName   [64]byte
	DataLen       uint32
	CreatedAtUnix int64
	MessageData   [MaxMessageDataSize]byte
}

// CreatedAt returns the cache time as a time.Time.
func (r *MDBRecord) CreatedAt() time.Time {
	return time.Unix(r.CreatedAtUnix, 0)
}

// Data returns the valid portion of MessageData.
func (r *MDBRecord) Data() []byte {
	return r.MessageData[:r.DataLen]
}

// SetData stores b as the message body, truncating to MaxMessageDataSize.
func (r *MDBRecord) SetData(b []byte) {
	n := copy(r.MessageData[:], b)
	r.DataLen = uint32(n)
}
