package kibitz

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

type MoveEval struct {
	Ply        int32  `parquet:"name=ply, type=INT32"`
	Move       string `parquet:"name=move, type=BYTE_ARRAY, convertedtype=UTF8"`
	FEN        string `parquet:"name=fen, type=BYTE_ARRAY, convertedtype=UTF8"`
	ScoreType  string `parquet:"name=score_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	ScoreValue int32  `parquet:"name=score_value, type=INT32"`
	BestMove   string `parquet:"name=best_move, type=BYTE_ARRAY, convertedtype=UTF8"`
	Loss       int32  `parquet:"name=loss, type=INT32"`
	Blunder    bool   `parquet:"name=blunder, type=BOOLEAN"`
}

type GameRecord struct {
	GameID       string     `parquet:"name=game_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	RecordID     string     `parquet:"name=record_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	White        string     `parquet:"name=white, type=BYTE_ARRAY, convertedtype=UTF8"`
	WhiteElo     int32      `parquet:"name=white_elo, type=INT32"`
	Black        string     `parquet:"name=black, type=BYTE_ARRAY, convertedtype=UTF8"`
	BlackElo     int32      `parquet:"name=black_elo, type=INT32"`
	Result       string     `parquet:"name=result, type=BYTE_ARRAY, convertedtype=UTF8"`
	Termination  string     `parquet:"name=termination, type=BYTE_ARRAY, convertedtype=UTF8"`
	MoveCount    int32      `parquet:"name=move_count, type=INT32"`
	BlunderCount int32      `parquet:"name=blunder_count, type=INT32"`
	MoveEvals    []MoveEval `parquet:"name=move_evals, type=LIST"`
}

type ParquetSchema struct {
	Name   string         `json:"name"`
	Fields []ParquetField `json:"fields"`
}

type ParquetField struct {
	Name     string      `json:"name"`
	Type     interface{} `json:"type"`
	Nullable bool        `json:"nullable"`
}

//go:embed schema/parquet_schema.json
var schemaJSON []byte

// WriteParquet stores every record received on records until the channel
// closes. The channel is read to the end even when writing fails, so
// producers never block on a dead writer.
func WriteParquet(path string, records <-chan GameRecord, parallel int64) error {
	fmt.Printf("writing parquet to %s\n", path)
	defer func() {
		for range records {
		}
	}()

	schema, err := loadParquetSchema(schemaJSON)
	if err != nil {
		return err
	}
	if err := validateSchema(schema, GameRecord{}); err != nil {
		return err
	}

	fileWriter, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	defer fileWriter.Close()

	parquetWriter, err := writer.NewParquetWriter(fileWriter, new(GameRecord), parallel)
	if err != nil {
		return err
	}
	parquetWriter.CompressionType = parquet.CompressionCodec_SNAPPY

	for record := range records {
		if err := parquetWriter.Write(record); err != nil {
			return err
		}
	}
	if err := parquetWriter.WriteStop(); err != nil {
		return err
	}
	return fileWriter.Close()
}

// ReadParquet loads every record of a file written by WriteParquet.
func ReadParquet(path string, parallel int64) ([]GameRecord, error) {
	records := []GameRecord{}
	err := ScanParquet(path, parallel, func(record GameRecord) error {
		records = append(records, record)
		return nil
	})
	return records, err
}

// ScanParquet streams records in batches to fn.
func ScanParquet(path string, parallel int64, fn func(GameRecord) error) error {
	absPath := path
	if !filepath.IsAbs(path) {
		if resolved, err := filepath.Abs(path); err == nil {
			absPath = resolved
		}
	}
	fileReader, err := local.NewLocalFileReader(absPath)
	if err != nil {
		return err
	}
	defer fileReader.Close()

	parquetReader, err := reader.NewParquetReader(fileReader, new(GameRecord), parallel)
	if err != nil {
		return err
	}
	defer parquetReader.ReadStop()

	rows := int(parquetReader.GetNumRows())
	batchSize := 1024
	for offset := 0; offset < rows; offset += batchSize {
		remain := rows - offset
		if remain < batchSize {
			batchSize = remain
		}
		batch := make([]GameRecord, batchSize)
		if err := parquetReader.Read(&batch); err != nil {
			return err
		}
		for i := range batch {
			if err := fn(batch[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadParquetSchema(data []byte) (ParquetSchema, error) {
	var schema ParquetSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return ParquetSchema{}, err
	}
	return schema, nil
}

func validateSchema(schema ParquetSchema, sample any) error {
	schemaFields := make(map[string]struct{}, len(schema.Fields))
	for _, field := range schema.Fields {
		schemaFields[field.Name] = struct{}{}
	}
	structFields := structParquetFieldNames(sample)
	missing := diffKeys(schemaFields, structFields)
	extra := diffKeys(structFields, schemaFields)
	if len(missing) > 0 || len(extra) > 0 {
		return fmt.Errorf("parquet schema mismatch: missing=%v extra=%v", missing, extra)
	}
	return nil
}

func structParquetFieldNames(sample any) map[string]struct{} {
	fields := map[string]struct{}{}
	v := reflect.TypeOf(sample)
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		name := parseParquetName(field.Tag.Get("parquet"))
		if name != "" {
			fields[name] = struct{}{}
		}
	}
	return fields
}

func parseParquetName(tag string) string {
	if tag == "" {
		return ""
	}
	parts := strings.Split(tag, ",")
	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 && kv[0] == "name" {
			return kv[1]
		}
	}
	return ""
}

func diffKeys(a, b map[string]struct{}) []string {
	var diff []string
	for key := range a {
		if _, ok := b[key]; !ok {
			diff = append(diff, key)
		}
	}
	return diff
}
