package provision

import (
	"fmt"
	"net"
	"strings"
)

// Роли прокси. Каждая роль подключается к базе строго под своим секретом.
type ProxyRole string

const (
	ProxyRoleApp          ProxyRole = "app"           // приложение, обычный пользователь
	ProxyRoleTableCreator ProxyRole = "table-creator" // привилегированная роль для миграций
	ProxyRoleAdmin        ProxyRole = "admin"         // административный доступ
)

const dbPort = 5432

// PlaceholderPassword — заведомо нерабочее значение в создаваемых секретах.
// Реальные пароли проставляет пост-деплойная ротация (см. bootstrap).
const PlaceholderPassword = "TO_BE_ROTATED"

// NetworkTopology приходит от соседнего сетевого стека: сами мы сеть не описываем.
type NetworkTopology struct {
	VPCID             string   `json:"vpc_id"`
	IsolatedSubnetIDs []string `json:"isolated_subnet_ids"` // сегменты без маршрута наружу
	PrivateCIDR       string   `json:"private_cidr"`        // кто вправе ходить на порт базы
}

// Inputs — все внешние параметры описания: префикс имен из контекста деплоя,
// имя существующего админского секрета и сетевая топология.
type Inputs struct {
	Prefix          string          `json:"prefix"`
	AdminSecretName string          `json:"admin_secret_name"` // содержит административный username
	Network         NetworkTopology `json:"network"`

	// Параметры инстанса; нулевые значения заменяются дефолтами
	InstanceClass      string `json:"instance_class"`
	AllocatedStorageGB int    `json:"allocated_storage_gb"`
	EngineVersion      string `json:"engine_version"`
}

// SecretSpec — создаваемый секрет с учетными данными роли.
type SecretSpec struct {
	LogicalID   string
	Username    string
	Placeholder bool // значение подлежит ротации после деплоя
}

// ProxySpec — connection-pooling прокси перед базой.
// TargetGroupName задается напрямую: синтез шаблона наш собственный, поэтому
// обходной поиск вложенного ресурса по типу (как в исходном инструменте) не нужен.
type ProxySpec struct {
	Role            ProxyRole
	LogicalID       string
	SecretLogicalID string // пустой, если секрет внешний (админский)
	TargetGroupName string
}

// Descriptor — декларативный граф ресурсов базы данных. Состояние только на
// момент деплоя: порядок создания выводит оркестратор из ссылок между ресурсами.
type Descriptor struct {
	Inputs  Inputs
	Secrets []SecretSpec
	Proxies []ProxySpec
}

// NewDescriptor собирает граф: один инстанс в изолированных подсетях,
// три прокси (app / table-creator / admin), каждый со своим секретом,
// и ingress-правило, ограниченное приватным CIDR.
func NewDescriptor(in Inputs) (*Descriptor, error) {
	if in.InstanceClass == "" {
		in.InstanceClass = "db.t3.medium"
	}
	if in.AllocatedStorageGB == 0 {
		in.AllocatedStorageGB = 100
	}
	if in.EngineVersion == "" {
		in.EngineVersion = "16.4"
	}

	d := &Descriptor{
		Inputs: in,
		Secrets: []SecretSpec{
			{LogicalID: "AppUserSecret", Username: "app_user", Placeholder: true},
			{LogicalID: "TableCreatorSecret", Username: "table_creator", Placeholder: true},
		},
		Proxies: []ProxySpec{
			{Role: ProxyRoleApp, LogicalID: "AppUserProxy", SecretLogicalID: "AppUserSecret", TargetGroupName: in.Prefix + "-app-user-tg"},
			{Role: ProxyRoleTableCreator, LogicalID: "TableCreatorProxy", SecretLogicalID: "TableCreatorSecret", TargetGroupName: in.Prefix + "-table-creator-tg"},
			{Role: ProxyRoleAdmin, LogicalID: "AdminProxy", TargetGroupName: in.Prefix + "-admin-tg"},
		},
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate проверяет граф до синтеза: лучше упасть здесь, чем на деплое.
func (d *Descriptor) Validate() error {
	in := d.Inputs

	if in.Prefix == "" {
		return fmt.Errorf("descriptor: resource name prefix is required")
	}
	if in.AdminSecretName == "" {
		return fmt.Errorf("descriptor: admin secret name is required")
	}
	if in.Network.VPCID == "" {
		return fmt.Errorf("descriptor: vpc id is required")
	}
	if len(in.Network.IsolatedSubnetIDs) == 0 {
		return fmt.Errorf("descriptor: at least one isolated subnet is required")
	}
	if _, _, err := net.ParseCIDR(in.Network.PrivateCIDR); err != nil {
		return fmt.Errorf("descriptor: invalid private CIDR %q: %w", in.Network.PrivateCIDR, err)
	}

	if len(d.Proxies) != 3 {
		return fmt.Errorf("descriptor: expected exactly 3 proxies, got %d", len(d.Proxies))
	}
	roles := map[ProxyRole]bool{}
	for _, p := range d.Proxies {
		if roles[p.Role] {
			return fmt.Errorf("descriptor: duplicate proxy role %q", p.Role)
		}
		roles[p.Role] = true

		// Секрет прокси обязан существовать в графе либо быть внешним админским
		if p.SecretLogicalID != "" && d.secret(p.SecretLogicalID) == nil {
			return fmt.Errorf("descriptor: proxy %s references unknown secret %s", p.LogicalID, p.SecretLogicalID)
		}
	}
	return nil
}

func (d *Descriptor) secret(logicalID string) *SecretSpec {
	for i := range d.Secrets {
		if d.Secrets[i].LogicalID == logicalID {
			return &d.Secrets[i]
		}
	}
	return nil
}

// logicalPrefix превращает ресурсный префикс в валидный кусок logical ID
// (CloudFormation принимает только [A-Za-z0-9])
func (d *Descriptor) logicalPrefix() string {
	var b strings.Builder
	upper := true
	for _, r := range d.Inputs.Prefix {
		switch {
		case r >= 'a' && r <= 'z':
			if upper {
				b.WriteRune(r - 32)
			} else {
				b.WriteRune(r)
			}
			upper = false
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			upper = false
		default:
			// разделители выбрасываем, следующую букву поднимаем
			upper = true
		}
	}
	return b.String()
}
