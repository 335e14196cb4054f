package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/engclin/melwatch/internal/mel"
)

// FieldMapping lists, per normalized field, the candidate payload paths in
// priority order. Paths use dot notation for nested objects.
type FieldMapping map[string][]string

// DefaultEquipmentMapping covers the key spellings seen across inventory exports.
var DefaultEquipmentMapping = FieldMapping{
	"id":           {"id", "Id", "ID", "equipmentId", "equipment_id", "equipamentoId", "equipamento_id", "idEquipamento"},
	"tag":          {"tag", "Tag", "TAG", "patrimonio", "Patrimonio", "identificacao"},
	"name":         {"name", "Name", "nome", "Nome", "equipamento", "Equipamento", "descricao"},
	"model":        {"model", "Model", "modelo", "Modelo"},
	"manufacturer": {"manufacturer", "Manufacturer", "fabricante", "Fabricante", "marca", "Marca"},
	"sector_id":    {"sectorId", "SectorId", "sector_id", "setorId", "SetorId", "setor_id", "idSetor", "setor.id", "sector.id"},
	"sector_name":  {"sectorName", "SectorName", "sector_name", "setorNome", "setor_nome", "setor", "Setor", "sector", "setor.nome", "sector.name"},
	"status":       {"status", "Status", "situacao", "Situacao"},
}

// DefaultWorkOrderMapping covers the key spellings seen across maintenance exports.
var DefaultWorkOrderMapping = FieldMapping{
	"serial_code":      {"serialCode", "SerialCode", "serial_code", "numero", "Numero", "os", "OS"},
	"code":             {"code", "Code", "codigo", "Codigo"},
	"equipment_id":     {"equipmentId", "EquipmentId", "equipment_id", "equipamentoId", "EquipamentoId", "equipamento_id", "idEquipamento", "equipamento.id", "equipment.id"},
	"tag":              {"tag", "Tag", "patrimonio", "Patrimonio", "equipamento.tag", "equipamento.patrimonio", "equipment.tag"},
	"name":             {"name", "Name", "equipmentName", "nome", "Nome", "equipamento.nome", "equipment.name", "equipamento"},
	"model":            {"model", "Model", "modelo", "Modelo", "equipamento.modelo", "equipment.model"},
	"manufacturer":     {"manufacturer", "Manufacturer", "fabricante", "Fabricante", "equipamento.fabricante", "equipment.manufacturer"},
	"status":           {"status", "Status", "situacao", "Situacao"},
	"maintenance_type": {"maintenanceType", "MaintenanceType", "maintenance_type", "tipoManutencao", "tipo_manutencao", "tipo", "Tipo"},
	"opened_at":        {"openedAt", "OpenedAt", "opened_at", "dataAbertura", "data_abertura", "abertura", "createdAt", "created_at"},
	"closed_at":        {"closedAt", "ClosedAt", "closed_at", "dataFechamento", "data_fechamento", "fechamento"},
}

// MergeMappings returns defaults with overrides replacing whole field entries.
func MergeMappings(defaults, overrides FieldMapping) FieldMapping {
	result := make(FieldMapping, len(defaults)+len(overrides))
	for k, v := range defaults {
		result[k] = v
	}
	for k, v := range overrides {
		result[k] = v
	}
	return result
}

var workOrderStatusAliases = map[string]mel.WorkOrderStatus{
	"open": mel.WorkOrderOpen, "opened": mel.WorkOrderOpen, "aberta": mel.WorkOrderOpen, "aberto": mel.WorkOrderOpen,
	"em aberto": mel.WorkOrderOpen, "reaberta": mel.WorkOrderOpen, "reopened": mel.WorkOrderOpen,
	"in progress": mel.WorkOrderOpen, "em andamento": mel.WorkOrderOpen, "andamento": mel.WorkOrderOpen,
	"em execucao": mel.WorkOrderOpen, "pending": mel.WorkOrderOpen, "pendente": mel.WorkOrderOpen,
	"aguardando": mel.WorkOrderOpen, "aguardando peca": mel.WorkOrderOpen, "aguardando pecas": mel.WorkOrderOpen,
	"assigned": mel.WorkOrderOpen, "atribuida": mel.WorkOrderOpen,

	"closed": mel.WorkOrderClosed, "fechada": mel.WorkOrderClosed, "fechado": mel.WorkOrderClosed,
	"concluida": mel.WorkOrderClosed, "concluido": mel.WorkOrderClosed, "finalizada": mel.WorkOrderClosed,
	"finalizado": mel.WorkOrderClosed, "encerrada": mel.WorkOrderClosed, "resolved": mel.WorkOrderClosed,
	"done": mel.WorkOrderClosed, "completed": mel.WorkOrderClosed,

	"cancelled": mel.WorkOrderCancelled, "canceled": mel.WorkOrderCancelled,
	"cancelada": mel.WorkOrderCancelled, "cancelado": mel.WorkOrderCancelled,
}

var maintenanceTypeAliases = map[string]mel.MaintenanceType{
	"corrective": mel.MaintenanceCorrective, "corretiva": mel.MaintenanceCorrective,
	"corretivo": mel.MaintenanceCorrective, "manutencao corretiva": mel.MaintenanceCorrective,
	"corrective maintenance": mel.MaintenanceCorrective, "mc": mel.MaintenanceCorrective,

	"preventive": mel.MaintenancePreventive, "preventiva": mel.MaintenancePreventive,
	"preventivo": mel.MaintenancePreventive, "manutencao preventiva": mel.MaintenancePreventive,
	"preventive maintenance": mel.MaintenancePreventive, "mp": mel.MaintenancePreventive,
}

func statusKey(s string) string {
	return mel.Fold(strings.NewReplacer("_", " ", "-", " ").Replace(s))
}

// NormalizeWorkOrderStatus maps a free-form status to the closed set.
// Unrecognized values are unknown, which never counts as open.
func NormalizeWorkOrderStatus(status string) mel.WorkOrderStatus {
	if s, ok := workOrderStatusAliases[statusKey(status)]; ok {
		return s
	}
	return mel.WorkOrderStatusUnknown
}

// NormalizeMaintenanceType maps a free-form maintenance type to the closed set.
func NormalizeMaintenanceType(kind string) mel.MaintenanceType {
	key := statusKey(kind)
	if t, ok := maintenanceTypeAliases[key]; ok {
		return t
	}
	switch {
	case strings.Contains(key, "corretiv"), strings.Contains(key, "corrective"):
		return mel.MaintenanceCorrective
	case strings.Contains(key, "preventiv"):
		return mel.MaintenancePreventive
	}
	return mel.MaintenanceOther
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ExtractNestedValue extracts a value using dot notation (e.g., "equipamento.id").
func ExtractNestedValue(data map[string]any, path string) any {
	if path == "" {
		return nil
	}
	var current any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
		if current == nil {
			return nil
		}
	}
	return current
}

// ExtractString renders a scalar at path as a trimmed string. Integral
// numbers lose their fractional part; objects and arrays yield "".
func ExtractString(data map[string]any, path string) string {
	switch v := ExtractNestedValue(data, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		if f, err := v.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10)
		}
		return v.String()
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Normalizer converts loosely-typed source payloads into typed records. It is
// the only place that knows about payload key spellings.
type Normalizer struct {
	equipmentMapping FieldMapping
	workOrderMapping FieldMapping
	sectors          mel.SectorResolver
	location         *time.Location
	logger           *zap.Logger
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithSectorResolver resolves sector names for records that lack a sector id.
func WithSectorResolver(r mel.SectorResolver) NormalizerOption {
	return func(n *Normalizer) { n.sectors = r }
}

// WithEquipmentMapping overrides equipment field paths.
func WithEquipmentMapping(overrides FieldMapping) NormalizerOption {
	return func(n *Normalizer) { n.equipmentMapping = MergeMappings(n.equipmentMapping, overrides) }
}

// WithWorkOrderMapping overrides work-order field paths.
func WithWorkOrderMapping(overrides FieldMapping) NormalizerOption {
	return func(n *Normalizer) { n.workOrderMapping = MergeMappings(n.workOrderMapping, overrides) }
}

// WithLocation sets the zone used for timestamps without an offset.
func WithLocation(loc *time.Location) NormalizerOption {
	return func(n *Normalizer) {
		if loc != nil {
			n.location = loc
		}
	}
}

// WithNormalizerLogger sets the logger for dropped-record warnings.
func WithNormalizerLogger(logger *zap.Logger) NormalizerOption {
	return func(n *Normalizer) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNormalizer creates a normalizer with the default mappings.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		equipmentMapping: DefaultEquipmentMapping,
		workOrderMapping: DefaultWorkOrderMapping,
		location:         time.UTC,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Normalizer) field(mapping FieldMapping, raw map[string]any, name string) string {
	for _, path := range mapping[name] {
		if v := ExtractString(raw, path); v != "" {
			return v
		}
	}
	return ""
}

// Equipment normalizes raw equipment records. Records without an id are
// dropped; a repeated id keeps its first occurrence.
func (n *Normalizer) Equipment(raw []map[string]any) []mel.Equipment {
	out := make([]mel.Equipment, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, r := range raw {
		f := func(name string) string { return n.field(n.equipmentMapping, r, name) }

		e := mel.Equipment{
			ID:           f("id"),
			Tag:          f("tag"),
			Name:         f("name"),
			Model:        f("model"),
			Manufacturer: f("manufacturer"),
			SectorID:     f("sector_id"),
			SectorName:   f("sector_name"),
			Status:       f("status"),
		}
		if e.ID == "" {
			n.logger.Warn("dropping equipment record without id", zap.Int("index", i))
			continue
		}
		if _, dup := seen[e.ID]; dup {
			n.logger.Warn("dropping duplicate equipment record", zap.String("equipment_id", e.ID))
			continue
		}
		seen[e.ID] = struct{}{}

		if e.SectorID == "" && e.SectorName != "" && n.sectors != nil {
			if id, ok := n.sectors.ResolveSector(e.SectorName); ok {
				e.SectorID = id
			} else {
				n.logger.Debug("unresolved sector name",
					zap.String("equipment_id", e.ID),
					zap.String("sector_name", e.SectorName))
			}
		}
		out = append(out, e)
	}
	return out
}

// WorkOrders normalizes raw work orders. A repeated serial code keeps its
// first occurrence. A closing timestamp marks the order closed unless it was
// cancelled.
func (n *Normalizer) WorkOrders(raw []map[string]any) []mel.WorkOrder {
	out := make([]mel.WorkOrder, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		f := func(name string) string { return n.field(n.workOrderMapping, r, name) }

		wo := mel.WorkOrder{
			SerialCode:      f("serial_code"),
			Code:            f("code"),
			EquipmentID:     f("equipment_id"),
			Tag:             f("tag"),
			Name:            f("name"),
			Model:           f("model"),
			Manufacturer:    f("manufacturer"),
			Status:          NormalizeWorkOrderStatus(f("status")),
			MaintenanceType: NormalizeMaintenanceType(f("maintenance_type")),
		}
		if wo.SerialCode == "" {
			wo.SerialCode = wo.Code
		}
		if wo.SerialCode != "" {
			if _, dup := seen[wo.SerialCode]; dup {
				n.logger.Warn("dropping duplicate work order", zap.String("serial_code", wo.SerialCode))
				continue
			}
			seen[wo.SerialCode] = struct{}{}
		}

		if t, ok := n.parseTime(f("opened_at")); ok {
			wo.OpenedAt = t
		}
		if t, ok := n.parseTime(f("closed_at")); ok {
			wo.ClosedAt = &t
			if wo.Status != mel.WorkOrderCancelled {
				wo.Status = mel.WorkOrderClosed
			}
		}
		out = append(out, wo)
	}
	return out
}

func (n *Normalizer) parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs > 1e12 {
			return time.UnixMilli(secs).UTC(), true
		}
		return time.Unix(secs, 0).UTC(), true
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, n.location); err == nil {
			return t, true
		}
	}
	n.logger.Debug("unparseable timestamp", zap.String("value", s))
	return time.Time{}, false
}

// envelopeKeys are the object keys under which record arrays are accepted.
var envelopeKeys = []string{"data", "items", "results", "records", "equipamentos", "ordens", "ordensServico"}

var totalPagesPaths = []string{"total_pages", "totalPages", "last_page", "lastPage", "pagination.total_pages", "pagination.totalPages", "meta.last_page", "meta.total_pages"}

// DecodeRecords parses a payload that is either a JSON array of objects or an
// object wrapping one under a known key. It also returns the advertised page
// count, or 0 when the payload does not paginate.
func DecodeRecords(data []byte) ([]map[string]any, int, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, 0, fmt.Errorf("failed to decode payload: %w", err)
	}

	switch v := payload.(type) {
	case []any:
		records, err := asRecords(v)
		return records, 0, err
	case map[string]any:
		for _, key := range envelopeKeys {
			if arr, ok := v[key].([]any); ok {
				records, err := asRecords(arr)
				if err != nil {
					return nil, 0, err
				}
				pages := 0
				for _, path := range totalPagesPaths {
					if p, err := strconv.Atoi(ExtractString(v, path)); err == nil && p > 0 {
						pages = p
						break
					}
				}
				return records, pages, nil
			}
		}
		return nil, 0, fmt.Errorf("payload object has no record array (expected one of %s)", strings.Join(envelopeKeys, ", "))
	default:
		return nil, 0, fmt.Errorf("unexpected payload type %T", payload)
	}
}

func asRecords(items []any) ([]map[string]any, error) {
	records := make([]map[string]any, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d is %T, not an object", i, item)
		}
		records = append(records, m)
	}
	return records, nil
}
