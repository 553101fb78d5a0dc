package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"symptom-diary-api/pkg/models"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// RecordStore 日誌レコードの永続化境界。
// パイプラインと分析はこのインターフェースにのみ依存します。
type RecordStore interface {
	Append(records []models.DiaryRecord) (int, error)
	Query(patientUID string, since time.Time) ([]models.DiaryRecord, error)
}

const recordSheetName = "Records"

// ExcelRecordStore xlsxワークブックを永続化先とするRecordStore実装。
// 全レコードをメモリに保持し、Appendのたびにワークブックへ書き戻します。
// (patientUID, createdAt秒) をキーとし、重複は後勝ち（keep-last）で解決します。
// 並行するパイプライン実行から共有されるため、全アクセスをミューテックスで直列化します。
type ExcelRecordStore struct {
	path string

	mu      sync.Mutex
	records map[string]map[int64]models.DiaryRecord // patientUID -> createdAt秒 -> record
}

// NewExcelRecordStore ワークブックを読み込んでストアを初期化します。
// ファイルが存在しない場合は空のストアとして開始します。
func NewExcelRecordStore(path string) (*ExcelRecordStore, error) {
	store := &ExcelRecordStore{
		path:    path,
		records: make(map[string]map[int64]models.DiaryRecord),
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return store, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("レコードファイルのオープンに失敗: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(recordSheetName)
	if err != nil {
		return nil, fmt.Errorf("レコードシートの読み取りに失敗: %w", err)
	}

	// 1行目はヘッダー: record_id, patient_uid, created_at, user_text, follow_ups
	for i, row := range rows {
		if i == 0 || len(row) < 4 {
			continue
		}
		createdAt, err := strconv.ParseInt(row[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("行%dのタイムスタンプが不正です: %w", i+1, err)
		}
		record := models.DiaryRecord{
			ID:         row[0],
			PatientUID: row[1],
			CreatedAt:  createdAt,
			UserText:   row[3],
		}
		if len(row) > 4 && row[4] != "" {
			if err := json.Unmarshal([]byte(row[4]), &record.FollowUps); err != nil {
				return nil, fmt.Errorf("行%dのfollow_upsが不正です: %w", i+1, err)
			}
		}
		store.put(record)
	}

	return store, nil
}

// put ロック済みの前提でレコードを格納します（後勝ち）。
func (s *ExcelRecordStore) put(record models.DiaryRecord) {
	byTime, ok := s.records[record.PatientUID]
	if !ok {
		byTime = make(map[int64]models.DiaryRecord)
		s.records[record.PatientUID] = byTime
	}
	byTime[record.CreatedAt] = record
}

// Append レコードを追加してワークブックに書き戻します。
// バッチ内・既存分とも (patientUID, createdAt) の重複は後勝ちで、
// 受理したキー数を返します。
func (s *ExcelRecordStore) Append(records []models.DiaryRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	for _, record := range records {
		if record.ID == "" {
			record.ID = uuid.New().String()
		}
		s.put(record)
		seen[fmt.Sprintf("%s/%d", record.PatientUID, record.CreatedAt)] = true
	}

	if err := s.persistLocked(); err != nil {
		return 0, err
	}
	return len(seen), nil
}

// Query 指定患者の since より新しいレコードをタイムスタンプ昇順で返します。
func (s *ExcelRecordStore) Query(patientUID string, since time.Time) ([]models.DiaryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.DiaryRecord
	for _, record := range s.records[patientUID] {
		if record.CreatedAt > since.Unix() {
			result = append(result, record)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})
	return result, nil
}

// persistLocked 全レコードをワークブックへ書き出します（ロック済みの前提）。
func (s *ExcelRecordStore) persistLocked() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("レコードディレクトリの作成に失敗: %w", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(recordSheetName); err != nil {
		return fmt.Errorf("シートの作成に失敗: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("デフォルトシートの削除に失敗: %w", err)
	}

	headers := []string{"record_id", "patient_uid", "created_at", "user_text", "follow_ups"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(recordSheetName, cell, h); err != nil {
			return fmt.Errorf("ヘッダーの書き込みに失敗: %w", err)
		}
	}

	// 出力順を安定させるため患者UID・タイムスタンプ順に並べる
	var all []models.DiaryRecord
	for _, byTime := range s.records {
		for _, record := range byTime {
			all = append(all, record)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].PatientUID != all[j].PatientUID {
			return all[i].PatientUID < all[j].PatientUID
		}
		return all[i].CreatedAt < all[j].CreatedAt
	})

	for i, record := range all {
		followUps := ""
		if len(record.FollowUps) > 0 {
			data, err := json.Marshal(record.FollowUps)
			if err != nil {
				return fmt.Errorf("follow_upsのJSON化に失敗: %w", err)
			}
			followUps = string(data)
		}
		values := []interface{}{record.ID, record.PatientUID, record.CreatedAt, record.UserText, followUps}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(recordSheetName, cell, v); err != nil {
				return fmt.Errorf("レコードの書き込みに失敗: %w", err)
			}
		}
	}

	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("レコードファイルの保存に失敗: %w", err)
	}
	return nil
}
